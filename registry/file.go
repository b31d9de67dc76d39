package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/azure/resource-graph-catalog-ingester/json"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

type FileFormat string

const (
	FileFormatJSON FileFormat = "json"
	FileFormatYAML FileFormat = "yaml"
)

// Snapshot is the JSON document written for one location key.
type Snapshot struct {
	LocationKey string        `json:"locationKey"`
	Entities    []value.Value `json:"entities"`
}

// FileRegistryClient keeps one file per location key in OutputFolderPath.
// Each mutation replaces the file, which removes entities that are no longer
// part of the set.
type FileRegistryClient struct {
	OutputFolderPath string
	Format           FileFormat
	JsonClient       json.IJsonClient
	Logger           *logrus.Logger
}

func NewFileRegistryClient(outputFolderPath string, format FileFormat, logger *logrus.Logger) (*FileRegistryClient, error) {
	if format != FileFormatJSON && format != FileFormatYAML {
		return nil, fmt.Errorf("unsupported registry file format %q", format)
	}
	if err := os.MkdirAll(outputFolderPath, 0755); err != nil {
		return nil, fmt.Errorf("creating registry folder: %w", err)
	}
	return &FileRegistryClient{
		OutputFolderPath: outputFolderPath,
		Format:           format,
		JsonClient:       json.NewJsonClient(outputFolderPath, logger),
		Logger:           logger,
	}, nil
}

func (fileClient *FileRegistryClient) ApplyMutation(ctx context.Context, mutation Mutation) error {
	if err := mutation.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fileName := FileName(mutation.LocationKey, string(fileClient.Format))
	previous, err := fileClient.Read(mutation.LocationKey)
	if err != nil {
		return err
	}

	entities := make([]value.Value, 0, len(mutation.Entities))
	for _, deferred := range mutation.Entities {
		entities = append(entities, deferred.Entity)
	}

	switch fileClient.Format {
	case FileFormatYAML:
		err = fileClient.writeYAML(fileName, entities)
	default:
		err = fileClient.JsonClient.Export(Snapshot{LocationKey: mutation.LocationKey, Entities: entities}, fileName)
	}
	if err != nil {
		return fmt.Errorf("writing registry file %s: %w", fileName, err)
	}

	previousKeys := make([]string, 0, len(previous))
	for _, e := range previous {
		previousKeys = append(previousKeys, Key(e))
	}
	removed := removedRefs(previousKeys, mutation.Keys())
	for _, key := range removed {
		fileClient.Logger.Debugf("Removed %s from %s", key, mutation.LocationKey)
	}
	fileClient.Logger.WithFields(logrus.Fields{
		"locationKey": mutation.LocationKey,
		"entities":    len(entities),
		"removed":     len(removed),
		"file":        filepath.Join(fileClient.OutputFolderPath, fileName),
	}).Info("Full mutation written")
	return nil
}

// Read returns the entities currently stored for locationKey. A missing file
// is an empty set.
func (fileClient *FileRegistryClient) Read(locationKey string) ([]value.Value, error) {
	fileName := FileName(locationKey, string(fileClient.Format))
	filePath := filepath.Join(fileClient.OutputFolderPath, fileName)
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return []value.Value{}, nil
	}

	if fileClient.Format == FileFormatYAML {
		return readYAML(filePath)
	}

	snapshot := Snapshot{}
	if err := fileClient.JsonClient.Import(fileName, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.Entities == nil {
		return []value.Value{}, nil
	}
	return snapshot.Entities, nil
}

// writeYAML writes a multi-document stream with one entity per document.
func (fileClient *FileRegistryClient) writeYAML(fileName string, entities []value.Value) error {
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	for _, e := range entities {
		if err := encoder.Encode(e); err != nil {
			return err
		}
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return json.WriteFileAtomic(filepath.Join(fileClient.OutputFolderPath, fileName), buffer.Bytes())
}

func readYAML(filePath string) ([]value.Value, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entities := []value.Value{}
	decoder := yaml.NewDecoder(file)
	for {
		var document any
		err := decoder.Decode(&document)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filePath, err)
		}
		decoded, err := value.FromAny(document)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filePath, err)
		}
		entities = append(entities, decoded)
	}
	return entities, nil
}
