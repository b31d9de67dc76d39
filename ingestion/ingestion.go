package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/azure/resource-graph-catalog-ingester/config"
	"github.com/azure/resource-graph-catalog-ingester/csv"
	"github.com/azure/resource-graph-catalog-ingester/entity"
	"github.com/azure/resource-graph-catalog-ingester/metrics"
	"github.com/azure/resource-graph-catalog-ingester/pager"
	"github.com/azure/resource-graph-catalog-ingester/registry"
	"github.com/azure/resource-graph-catalog-ingester/types"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"

	skipReasonNoEntity  = "no_entity"
	skipReasonIgnored   = "ignored"
	skipReasonDuplicate = "duplicate"
)

type IIngestionClient interface {
	Run(ctx context.Context) (*Summary, error)
}

// Summary describes one completed run.
type Summary struct {
	RunID         string
	ProviderID    string
	LocationKey   string
	Pages         int
	Records       int
	Ignored       int
	Duplicates    int
	Mapped        int
	Skipped       int
	MappingErrors int
	Truncated     bool
	Issues        []types.Issue
}

type IngestionClient struct {
	Config         *config.ProviderConfig
	QueryFunc      pager.QueryFunc
	Fetcher        *pager.Fetcher
	Synthesizer    *entity.Synthesizer
	RegistryClient registry.IRegistryClient
	IssueCsvClient csv.IIssueCsvClient
	Metrics        *metrics.Metrics
	Concurrency    int
	Logger         *logrus.Logger
}

// NewIngestionClient wires one provider's pipeline. issueCsvClient and
// metricsClient may be nil. A concurrency below one uses GOMAXPROCS.
func NewIngestionClient(providerConfig *config.ProviderConfig, queryFunc pager.QueryFunc, synthesizer *entity.Synthesizer, registryClient registry.IRegistryClient, issueCsvClient csv.IIssueCsvClient, metricsClient *metrics.Metrics, concurrency int, logger *logrus.Logger) *IngestionClient {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &IngestionClient{
		Config:         providerConfig,
		QueryFunc:      queryFunc,
		Fetcher:        pager.NewFetcher(logger),
		Synthesizer:    synthesizer,
		RegistryClient: registryClient,
		IssueCsvClient: issueCsvClient,
		Metrics:        metricsClient,
		Concurrency:    concurrency,
		Logger:         logger,
	}
}

type synthesisResult struct {
	entity value.Value
	ok     bool
	err    error
}

// Run fetches every page, synthesizes entities and publishes them as one full
// mutation. Nothing is published when fetching fails.
func (ingestionClient *IngestionClient) Run(ctx context.Context) (*Summary, error) {
	providerConfig := ingestionClient.Config
	summary := &Summary{
		RunID:       uuid.NewString(),
		ProviderID:  providerConfig.ID,
		LocationKey: providerConfig.LocationKey(),
		Issues:      []types.Issue{},
	}
	log := ingestionClient.Logger.WithFields(logrus.Fields{
		"runId":    summary.RunID,
		"provider": providerConfig.ProviderName(),
	})
	log.Infof("Starting ingestion for provider %s", providerConfig.ID)

	fetched, err := ingestionClient.Fetcher.FetchAll(ctx, ingestionClient.QueryFunc, providerConfig.Scope, providerConfig.Query, providerConfig.MaxPages)
	if err != nil {
		ingestionClient.recordRun(RunStatusFailed)
		log.Errorf("Ingestion failed: %v", err)
		return summary, err
	}
	summary.Pages = fetched.Pages
	summary.Records = len(fetched.Records)
	summary.Truncated = fetched.Truncated
	if ingestionClient.Metrics != nil {
		ingestionClient.Metrics.RecordFetch(providerConfig.ID, fetched.Pages, len(fetched.Records))
	}

	records := ingestionClient.filterRecords(fetched.Records, summary, log)
	results := ingestionClient.synthesizeAll(records, log)

	entities := []value.Value{}
	for index, result := range results {
		switch {
		case result.err != nil:
			summary.MappingErrors++
			ingestionClient.addIssue(summary, records[index], index, types.IssueTypeMappingError, result.err.Error())
		case !result.ok:
			summary.Skipped++
			ingestionClient.addIssue(summary, records[index], index, types.IssueTypeNoEntity, "")
		default:
			entities = append(entities, result.entity)
		}
	}
	summary.Mapped = len(entities)

	if err := ctx.Err(); err != nil {
		ingestionClient.recordRun(RunStatusFailed)
		return summary, fmt.Errorf("ingestion for provider %s cancelled before publishing: %w", providerConfig.ID, err)
	}

	mutation := registry.NewFullMutation(summary.LocationKey, entities)
	if err := ingestionClient.RegistryClient.ApplyMutation(ctx, mutation); err != nil {
		ingestionClient.recordRun(RunStatusFailed)
		return summary, fmt.Errorf("failed to publish entities for provider %s: %w", providerConfig.ID, err)
	}

	if ingestionClient.IssueCsvClient != nil {
		if err := ingestionClient.IssueCsvClient.Export(summary.Issues); err != nil {
			log.Warnf("Failed to write skipped record report: %v", err)
		}
	}

	ingestionClient.recordSummary(summary)
	log.WithFields(logrus.Fields{
		"pages":         summary.Pages,
		"records":       summary.Records,
		"ignored":       summary.Ignored,
		"duplicates":    summary.Duplicates,
		"mapped":        summary.Mapped,
		"skipped":       summary.Skipped,
		"mappingErrors": summary.MappingErrors,
		"truncated":     summary.Truncated,
	}).Infof("Ingestion finished for provider %s", providerConfig.ID)
	return summary, nil
}

// filterRecords drops records whose id matches an ignore pattern and
// repeated ids. The first record with a given id is kept.
func (ingestionClient *IngestionClient) filterRecords(records []value.Value, summary *Summary, log *logrus.Entry) []value.Value {
	kept := make([]value.Value, 0, len(records))
	seen := map[string]bool{}

	for index, record := range records {
		id, hasID := record.GetString("id")
		if hasID && ingestionClient.isIgnored(id) {
			log.Debugf("Ignoring resource %s", id)
			summary.Ignored++
			ingestionClient.addIssue(summary, record, index, types.IssueTypeIgnoredByRegex, "")
			continue
		}
		if hasID && id != "" {
			if seen[id] {
				log.Warnf("Resource %s returned more than once, keeping the first record", id)
				summary.Duplicates++
				ingestionClient.addIssue(summary, record, index, types.IssueTypeDuplicateID, "")
				continue
			}
			seen[id] = true
		}
		kept = append(kept, record)
	}
	return kept
}

func (ingestionClient *IngestionClient) isIgnored(id string) bool {
	for _, pattern := range ingestionClient.Config.IgnoreResourceIDPatterns {
		if pattern.MatchString(id) {
			return true
		}
	}
	return false
}

// synthesizeAll maps records in parallel. Results keep the record order and a
// failing record never stops its siblings.
func (ingestionClient *IngestionClient) synthesizeAll(records []value.Value, log *logrus.Entry) []synthesisResult {
	results := make([]synthesisResult, len(records))

	group := errgroup.Group{}
	group.SetLimit(ingestionClient.Concurrency)
	for index := range records {
		index := index
		group.Go(func() error {
			results[index] = ingestionClient.synthesize(records[index], log)
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (ingestionClient *IngestionClient) synthesize(record value.Value, log *logrus.Entry) (result synthesisResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = synthesisResult{err: fmt.Errorf("panic while mapping record: %v", recovered)}
			logRecordError(log, record, result.err)
		}
	}()

	synthesized, ok, err := ingestionClient.Synthesizer.Synthesize(record)
	if err != nil {
		logRecordError(log, record, err)
		return synthesisResult{err: err}
	}
	if !ok {
		id, _ := record.GetString("id")
		log.Debugf("No entity produced for resource %s", id)
	}
	return synthesisResult{entity: synthesized, ok: ok}
}

func logRecordError(log *logrus.Entry, record value.Value, err error) {
	id, _ := record.GetString("id")
	resourceType, _ := record.GetString("type")
	log.WithFields(logrus.Fields{
		"id":   id,
		"type": resourceType,
	}).Errorf("Failed to map record: %v", err)
}

func (ingestionClient *IngestionClient) addIssue(summary *Summary, record value.Value, index int, issueType types.IssueType, detail string) {
	id, _ := record.GetString("id")
	name, _ := record.GetString("name")
	resourceType, _ := record.GetString("type")

	summary.Issues = append(summary.Issues, types.Issue{
		IssueID:      getIdentityHash(fmt.Sprintf("%s:%s:%d", issueType, id, index)),
		IssueType:    issueType,
		ProviderID:   summary.ProviderID,
		ResourceID:   id,
		ResourceName: name,
		ResourceType: resourceType,
		Detail:       detail,
	})
}

func (ingestionClient *IngestionClient) recordRun(status string) {
	if ingestionClient.Metrics != nil {
		ingestionClient.Metrics.RecordRun(ingestionClient.Config.ID, status)
	}
}

func (ingestionClient *IngestionClient) recordSummary(summary *Summary) {
	if ingestionClient.Metrics == nil {
		return
	}
	providerID := summary.ProviderID
	ingestionClient.Metrics.RecordMapped(providerID, summary.Mapped)
	ingestionClient.Metrics.RecordMappingErrors(providerID, summary.MappingErrors)
	ingestionClient.Metrics.RecordSkipped(providerID, skipReasonNoEntity, summary.Skipped)
	ingestionClient.Metrics.RecordSkipped(providerID, skipReasonIgnored, summary.Ignored)
	ingestionClient.Metrics.RecordSkipped(providerID, skipReasonDuplicate, summary.Duplicates)
	ingestionClient.Metrics.RecordPublished(providerID, summary.Mapped)
	ingestionClient.Metrics.RecordRun(providerID, RunStatusSuccess)
}

func getIdentityHash(id string) string {
	sha256ID := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", sha256ID)[0:7]
}
