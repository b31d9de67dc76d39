package csv

import (
	csvwriter "encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/azure/resource-graph-catalog-ingester/types"
)

const DefaultFileName = "skipped-records.csv"

type IIssueCsvClient interface {
	Export(issues []types.Issue) error
}

type IssueCsvClient struct {
	WorkingFolderPath string
	FileName          string
	Header            []string
	Logger            *logrus.Logger
}

func NewIssueCsvClient(workingFolderPath string, fileName string, logger *logrus.Logger) *IssueCsvClient {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &IssueCsvClient{
		WorkingFolderPath: workingFolderPath,
		FileName:          fileName,
		Header:            []string{"Issue ID", "Issue Type", "Provider ID", "Resource ID", "Resource Name", "Resource Type", "Detail"},
		Logger:            logger,
	}
}

// Export writes issues sorted by type, provider and resource id. An empty
// issue list still produces a file with the header so stale reports are
// overwritten.
func (csvClient *IssueCsvClient) Export(issues []types.Issue) error {
	rows := make([]types.Issue, len(issues))
	copy(rows, issues)
	sort.Sort(ByIssueTypeProviderAndResourceID(rows))

	csvData := [][]string{csvClient.Header}
	for _, issue := range rows {
		csvData = append(csvData, []string{
			issue.IssueID,
			string(issue.IssueType),
			issue.ProviderID,
			issue.ResourceID,
			issue.ResourceName,
			issue.ResourceType,
			issue.Detail,
		})
	}

	csvFilePath := filepath.Join(csvClient.WorkingFolderPath, csvClient.FileName)
	csvFile, err := os.Create(csvFilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer csvFile.Close()

	csvWriter := csvwriter.NewWriter(csvFile)
	if err := csvWriter.WriteAll(csvData); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	csvClient.Logger.Infof("Skipped records written to %s", csvFilePath)
	return nil
}

type ByIssueTypeProviderAndResourceID []types.Issue

func (o ByIssueTypeProviderAndResourceID) Len() int      { return len(o) }
func (o ByIssueTypeProviderAndResourceID) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o ByIssueTypeProviderAndResourceID) Less(i, j int) bool {
	if o[i].IssueType != o[j].IssueType {
		return o[i].IssueType < o[j].IssueType
	}

	if o[i].ProviderID != o[j].ProviderID {
		return o[i].ProviderID < o[j].ProviderID
	}

	if o[i].ResourceID != o[j].ResourceID {
		return o[i].ResourceID < o[j].ResourceID
	}

	return o[i].IssueID < o[j].IssueID
}
