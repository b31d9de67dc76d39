/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/azure/resource-graph-catalog-ingester/azure"
	"github.com/azure/resource-graph-catalog-ingester/entity"
	"github.com/azure/resource-graph-catalog-ingester/filepathparser"
	jsonclient "github.com/azure/resource-graph-catalog-ingester/json"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Apply a provider's mapping to records read from a JSON file",
	Long: `The map command runs entity synthesis for one provider against a JSON file
holding a single Resource Graph record or an array of records, and prints the
resulting entities. Records that produce no entity are reported on stderr.

Examples:
  resource-graph-catalog-ingester map --provider prod --record ./storage-account.json
  resource-graph-catalog-ingester map --provider prod --record ./records.json --output yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		ids := viper.GetStringSlice("provider")
		if len(ids) != 1 {
			log.Fatalf("Exactly one --provider is required, got %d", len(ids))
		}
		file, providers, err := loadProviders(ids)
		if err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
		providerConfig := providers[0]

		azureCloud, err := azure.LookupCloud(cloudName(file))
		if err != nil {
			log.Fatalf("Error selecting cloud: %v", err)
		}

		recordPath, err := filepathparser.ParsePath(viper.GetString("record"))
		if err != nil {
			log.Fatalf("Error getting record path: %v", err)
		}
		records, err := readRecords(recordPath)
		if err != nil {
			log.Fatalf("Error reading records: %v", err)
		}

		synthesizer := entity.NewSynthesizer(
			providerConfig.ID,
			providerConfig.Mapping,
			providerConfig.DefaultOwner,
			providerConfig.OwnerTag,
			azureCloud.PortalBaseURL,
			log,
		)

		entities := []value.Value{}
		for index, record := range records {
			synthesized, ok, err := synthesizer.Synthesize(record)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "record %d: %v\n", index, err)
				continue
			}
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "record %d: no entity, metadata.name or spec.type is missing\n", index)
				continue
			}
			entities = append(entities, synthesized)
		}

		if err := writeEntities(cmd.OutOrStdout(), entities, viper.GetString("output")); err != nil {
			log.Fatalf("Error writing entities: %v", err)
		}
	},
}

// readRecords accepts a single record or an array of records.
func readRecords(path string) ([]value.Value, error) {
	jsonClient := jsonclient.NewJsonClient(filepath.Dir(path), log)
	document := value.Value{}
	if err := jsonClient.Import(filepath.Base(path), &document); err != nil {
		return nil, err
	}
	if document.Kind() == value.KindArray {
		return document.Items(), nil
	}
	return []value.Value{document}, nil
}

func writeEntities(out io.Writer, entities []value.Value, format string) error {
	switch format {
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		for _, e := range entities {
			if err := encoder.Encode(e); err != nil {
				return err
			}
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		for _, e := range entities {
			if err := encoder.Encode(e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q, expected json or yaml", format)
	}
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().String("record", "record.json", "JSON file with a record or an array of records")
	viper.BindPFlag("record", mapCmd.Flags().Lookup("record"))
	mapCmd.Flags().String("output", "json", "Output format (json, yaml)")
	viper.BindPFlag("output", mapCmd.Flags().Lookup("output"))
}
