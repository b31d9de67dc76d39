/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azure/resource-graph-catalog-ingester/config"
	"github.com/azure/resource-graph-catalog-ingester/filepathparser"
)

const envPrefix = "RGI"

var configFile string

var log = logrus.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "resource-graph-catalog-ingester",
	Short: "Ingest Azure Resource Graph resources into a software catalog",
	Long: `Queries Azure Resource Graph for each configured provider, maps every
resource into a catalog entity using the provider's mapping rules and publishes
the complete entity set as a single full-replace mutation.

Providers are defined in the config file:

  cloud: AzurePublic
  providers:
    - id: prod
      query: resources | where type =~ 'microsoft.storage/storageaccounts'
      scope:
        subscriptions: ["00000000-0000-0000-0000-000000000000"]
      mapping:
        metadata:
          name: name
        spec:
          owner: tags['catalog.owner']`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringP("verbosity", "v", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))
	rootCmd.PersistentFlags().Bool("structuredLogs", false, "Write logs as JSON")
	viper.BindPFlag("structuredLogs", rootCmd.PersistentFlags().Lookup("structuredLogs"))
	rootCmd.PersistentFlags().String("cloud", "", "Azure cloud (AzurePublic, AzureChina, AzureGovernment), overrides the config file")
	viper.BindPFlag("cloud", rootCmd.PersistentFlags().Lookup("cloud"))
	rootCmd.PersistentFlags().StringSliceP("provider", "p", []string{}, "Provider ids to use, all providers when empty")
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func configureLogging() error {
	logLevel, err := logrus.ParseLevel(viper.GetString("verbosity"))
	if err != nil {
		return err
	}
	log.SetLevel(logLevel)
	log.SetFormatter(&logrus.TextFormatter{})
	if viper.GetBool("structuredLogs") {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	for key, value := range viper.GetViper().AllSettings() {
		log.Tracef("Setting: %s = %v", key, value)
	}
	return nil
}

// configFilePath is the file the provider definitions are read from.
func configFilePath() (string, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = "config.yaml"
	}
	return filepathparser.ParsePath(path)
}

// loadProviders reads the config file and returns the providers named by ids,
// or every provider when ids is empty.
func loadProviders(ids []string) (*config.File, []*config.ProviderConfig, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, nil, err
	}
	file, providers, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	selected, err := config.Select(providers, ids)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("Loaded %d of %d providers from %s", len(selected), len(providers), path)
	return file, selected, nil
}

func cloudName(file *config.File) string {
	if name := viper.GetString("cloud"); name != "" {
		return name
	}
	return file.Cloud
}
