package registry

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogRegistryClient only logs what would be published.
type LogRegistryClient struct {
	Logger *logrus.Logger
}

func NewLogRegistryClient(logger *logrus.Logger) *LogRegistryClient {
	return &LogRegistryClient{
		Logger: logger,
	}
}

func (logClient *LogRegistryClient) ApplyMutation(ctx context.Context, mutation Mutation) error {
	if err := mutation.Validate(); err != nil {
		return err
	}
	for _, ref := range mutation.Refs() {
		logClient.Logger.Infof("Would publish %s under %s", ref, mutation.LocationKey)
	}
	logClient.Logger.WithFields(logrus.Fields{
		"locationKey": mutation.LocationKey,
		"entities":    len(mutation.Entities),
	}).Info("Dry run, full mutation not applied")
	return nil
}
