package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type IJsonClient interface {
	Export(data any, fileName string) error
	Import(fileName string, target any) error
	Exists(fileName string) bool
}

type JsonClient struct {
	WorkingFolderPath string
	Logger            *logrus.Logger
}

func NewJsonClient(workingFolderPath string, logger *logrus.Logger) *JsonClient {
	return &JsonClient{
		WorkingFolderPath: workingFolderPath,
		Logger:            logger,
	}
}

// Export writes data as indented JSON. The file is replaced atomically so a
// reader never sees a partially written document.
func (jsonClient *JsonClient) Export(data any, fileName string) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", fileName, err)
	}
	jsonFilePath := filepath.Join(jsonClient.WorkingFolderPath, fileName)
	if err := WriteFileAtomic(jsonFilePath, append(jsonData, '\n')); err != nil {
		return err
	}
	jsonClient.Logger.Debugf("JSON file written to %s", jsonFilePath)
	return nil
}

func (jsonClient *JsonClient) Import(fileName string, target any) error {
	jsonFilePath := filepath.Join(jsonClient.WorkingFolderPath, fileName)

	content, err := os.ReadFile(jsonFilePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", jsonFilePath, err)
	}

	if err := json.Unmarshal(content, target); err != nil {
		return fmt.Errorf("decoding %s: %w", jsonFilePath, err)
	}
	return nil
}

func (jsonClient *JsonClient) Exists(fileName string) bool {
	_, err := os.Stat(filepath.Join(jsonClient.WorkingFolderPath, fileName))
	return err == nil
}

// WriteFileAtomic writes content to a temporary file next to path and
// renames it into place.
func WriteFileAtomic(path string, content []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(content); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
