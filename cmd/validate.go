/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azure/resource-graph-catalog-ingester/azure"
	"github.com/azure/resource-graph-catalog-ingester/config"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate provider configuration without querying Azure",
	Long: `The validate command loads the config file, checks every provider definition
and prints the provider names, location keys and compiled mapping paths.

Examples:
  resource-graph-catalog-ingester validate --config ./config.yaml
  resource-graph-catalog-ingester validate --config ./config.yaml --provider prod`,
	Run: func(cmd *cobra.Command, args []string) {
		file, providers, err := loadProviders(viper.GetStringSlice("provider"))
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
		azureCloud, err := azure.LookupCloud(cloudName(file))
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "cloud: %s\n", azureCloud.Name)
		for _, providerConfig := range providers {
			describeProvider(out, providerConfig)
		}
		log.Infof("Configuration is valid, %d providers", len(providers))
	},
}

func describeProvider(out io.Writer, providerConfig *config.ProviderConfig) {
	fmt.Fprintf(out, "\nprovider: %s\n", providerConfig.ProviderName())
	fmt.Fprintf(out, "  locationKey: %s\n", providerConfig.LocationKey())
	fmt.Fprintf(out, "  schedule: every %s, timeout %s\n", providerConfig.Schedule.Frequency, providerConfig.Schedule.Timeout)
	fmt.Fprintf(out, "  maxPages: %d\n", providerConfig.MaxPages)
	if len(providerConfig.Scope.Subscriptions) > 0 {
		fmt.Fprintf(out, "  subscriptions: %v\n", providerConfig.Scope.Subscriptions)
	}
	if len(providerConfig.Scope.ManagementGroups) > 0 {
		fmt.Fprintf(out, "  managementGroups: %v\n", providerConfig.Scope.ManagementGroups)
	}
	for _, pattern := range providerConfig.IgnoreResourceIDPatterns {
		fmt.Fprintf(out, "  ignore: %s\n", pattern.String())
	}
	if providerConfig.Mapping == nil {
		fmt.Fprintln(out, "  mapping: defaults only")
		return
	}
	fmt.Fprintln(out, "  mapping:")
	for _, binding := range providerConfig.Mapping.Paths() {
		fmt.Fprintf(out, "    %s <- %s\n", binding.Target, binding.Source.String())
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
