/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azure/resource-graph-catalog-ingester/azure"
	"github.com/azure/resource-graph-catalog-ingester/csv"
	"github.com/azure/resource-graph-catalog-ingester/entity"
	"github.com/azure/resource-graph-catalog-ingester/filepathparser"
	"github.com/azure/resource-graph-catalog-ingester/ingestion"
	"github.com/azure/resource-graph-catalog-ingester/metrics"
	"github.com/azure/resource-graph-catalog-ingester/registry"
)

const (
	registrySinkFile   = "file"
	registrySinkSqlite = "sqlite"
	registrySinkLog    = "log"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest Resource Graph resources and publish catalog entities",
	Long: `The run command performs one ingestion per configured provider:

1. Queries Azure Resource Graph page by page until no continuation token is returned
2. Maps every resource into a catalog entity with the provider's mapping rules
3. Publishes the complete entity set as one full-replace mutation
4. Writes a CSV report of skipped records to the working folder

A provider fails as a whole when any page cannot be fetched, in which case nothing
is published for it and the previously published entities are kept.

Examples:
  # Publish all providers to JSON files in ./catalog
  resource-graph-catalog-ingester run --config ./config.yaml --outputPath ./catalog

  # Publish a single provider into a SQLite registry
  resource-graph-catalog-ingester run --provider prod --registry sqlite --databasePath ./catalog.db

  # Dry run, only log the entities that would be published
  resource-graph-catalog-ingester run --registry log`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		file, providers, err := loadProviders(viper.GetStringSlice("provider"))
		if err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}

		azureCloud, err := azure.LookupCloud(cloudName(file))
		if err != nil {
			log.Fatalf("Error selecting cloud: %v", err)
		}

		pageSize := file.PageSize
		if viper.IsSet("pageSize") {
			pageSize = viper.GetInt32("pageSize")
		}

		workingFolderPath, err := filepathparser.ParsePath(viper.GetString("workingFolderPath"))
		if err != nil {
			log.Fatalf("Error getting working folder path: %v", err)
		}
		metricsFilePath, err := filepathparser.ParseOptionalPath(viper.GetString("metricsFile"))
		if err != nil {
			log.Fatalf("Error getting metrics file path: %v", err)
		}

		resourceGraphClient, err := azure.NewResourceGraphClient(azureCloud.Name, pageSize, log)
		if err != nil {
			log.Fatalf("Error creating Resource Graph client: %v", err)
		}

		metricsClient, err := metrics.NewMetrics()
		if err != nil {
			log.Fatalf("Error creating metrics: %v", err)
		}

		registryClient, closeRegistry, err := newRegistryClient(ctx)
		if err != nil {
			log.Fatalf("Error creating registry client: %v", err)
		}

		failed := 0
		for _, providerConfig := range providers {
			synthesizer := entity.NewSynthesizer(
				providerConfig.ID,
				providerConfig.Mapping,
				providerConfig.DefaultOwner,
				providerConfig.OwnerTag,
				azureCloud.PortalBaseURL,
				log,
			)

			var issueCsvClient csv.IIssueCsvClient
			if viper.GetBool("skippedRecordsReport") {
				issueCsvClient = csv.NewIssueCsvClient(
					workingFolderPath,
					providerConfig.ProviderName()+"-"+csv.DefaultFileName,
					log,
				)
			}

			ingestionClient := ingestion.NewIngestionClient(
				providerConfig,
				resourceGraphClient.Query,
				synthesizer,
				registryClient,
				issueCsvClient,
				metricsClient,
				viper.GetInt("concurrency"),
				log,
			)

			runCtx, cancel := context.WithTimeout(ctx, providerConfig.Schedule.Timeout)
			_, err := ingestionClient.Run(runCtx)
			cancel()
			if err != nil {
				log.Errorf("Provider %s failed: %v", providerConfig.ID, err)
				failed++
			}
		}

		closeRegistry()

		if metricsFilePath != "" {
			if err := metricsClient.WriteToTextfile(metricsFilePath); err != nil {
				log.Errorf("Error writing metrics to %s: %v", metricsFilePath, err)
			}
		}

		if failed > 0 {
			log.Fatalf("%d of %d providers failed", failed, len(providers))
		}
		log.Infof("Ingested %d providers", len(providers))
	},
}

// newRegistryClient builds the publish target selected by the registry
// setting. The returned function releases it.
func newRegistryClient(ctx context.Context) (registry.IRegistryClient, func(), error) {
	noop := func() {}

	switch sink := viper.GetString("registry"); sink {
	case registrySinkFile:
		outputPath, err := filepathparser.ParsePath(viper.GetString("outputPath"))
		if err != nil {
			return nil, noop, err
		}
		fileClient, err := registry.NewFileRegistryClient(outputPath, registry.FileFormat(viper.GetString("format")), log)
		if err != nil {
			return nil, noop, err
		}
		return fileClient, noop, nil
	case registrySinkSqlite:
		databasePath, err := filepathparser.ParsePath(viper.GetString("databasePath"))
		if err != nil {
			return nil, noop, err
		}
		sqliteClient, err := registry.NewSqliteRegistryClient(ctx, databasePath, log)
		if err != nil {
			return nil, noop, err
		}
		return sqliteClient, func() {
			if err := sqliteClient.Close(); err != nil {
				log.Warnf("Error closing registry database: %v", err)
			}
		}, nil
	case registrySinkLog:
		return registry.NewLogRegistryClient(log), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown registry %q, expected one of %s, %s, %s", sink, registrySinkFile, registrySinkSqlite, registrySinkLog)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.PersistentFlags().StringP("workingFolderPath", "w", ".", "Working folder path for skipped record reports")
	viper.BindPFlag("workingFolderPath", runCmd.PersistentFlags().Lookup("workingFolderPath"))
	runCmd.PersistentFlags().Bool("skippedRecordsReport", true, "Write a CSV report of skipped records per provider")
	viper.BindPFlag("skippedRecordsReport", runCmd.PersistentFlags().Lookup("skippedRecordsReport"))
	runCmd.PersistentFlags().StringP("registry", "r", registrySinkFile, "Registry to publish to (file, sqlite, log)")
	viper.BindPFlag("registry", runCmd.PersistentFlags().Lookup("registry"))
	runCmd.PersistentFlags().StringP("outputPath", "o", "./catalog", "Output folder for the file registry")
	viper.BindPFlag("outputPath", runCmd.PersistentFlags().Lookup("outputPath"))
	runCmd.PersistentFlags().StringP("format", "f", string(registry.FileFormatJSON), "File registry format (json, yaml)")
	viper.BindPFlag("format", runCmd.PersistentFlags().Lookup("format"))
	runCmd.PersistentFlags().String("databasePath", "./catalog.db", "Database file for the sqlite registry")
	viper.BindPFlag("databasePath", runCmd.PersistentFlags().Lookup("databasePath"))
	runCmd.PersistentFlags().Int32("pageSize", 0, "Records per Resource Graph page, the service default when 0")
	viper.BindPFlag("pageSize", runCmd.PersistentFlags().Lookup("pageSize"))
	runCmd.PersistentFlags().IntP("concurrency", "n", 0, "Records mapped in parallel, GOMAXPROCS when 0")
	viper.BindPFlag("concurrency", runCmd.PersistentFlags().Lookup("concurrency"))
	runCmd.PersistentFlags().String("metricsFile", "", "Write Prometheus metrics to this file after the run")
	viper.BindPFlag("metricsFile", runCmd.PersistentFlags().Lookup("metricsFile"))
}
