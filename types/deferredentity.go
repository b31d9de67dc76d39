package types

import "github.com/azure/resource-graph-catalog-ingester/value"

// DeferredEntity pairs an entity with the location key that scopes it in the
// registry.
type DeferredEntity struct {
	Entity      value.Value `json:"entity" yaml:"entity"`
	LocationKey string      `json:"locationKey" yaml:"locationKey"`
}
