// Package registry holds the publish side of an ingestion run: a full-replace
// mutation and the sinks that accept it.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/azure/resource-graph-catalog-ingester/entity"
	"github.com/azure/resource-graph-catalog-ingester/types"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

type MutationType string

// MutationTypeFull declares the complete entity set of a location key.
// Entities previously published under the key and absent from the mutation
// are removed by the registry.
const MutationTypeFull MutationType = "full"

type Mutation struct {
	Type        MutationType
	LocationKey string
	Entities    []types.DeferredEntity
}

type IRegistryClient interface {
	ApplyMutation(ctx context.Context, mutation Mutation) error
}

// NewFullMutation pairs every entity with locationKey.
func NewFullMutation(locationKey string, entities []value.Value) Mutation {
	deferred := make([]types.DeferredEntity, 0, len(entities))
	for _, e := range entities {
		deferred = append(deferred, types.DeferredEntity{Entity: e, LocationKey: locationKey})
	}
	return Mutation{
		Type:        MutationTypeFull,
		LocationKey: locationKey,
		Entities:    deferred,
	}
}

// Validate checks that the mutation is a full replace and every entity
// belongs to the mutation's location key.
func (mutation Mutation) Validate() error {
	if mutation.Type != MutationTypeFull {
		return fmt.Errorf("unsupported mutation type %q", mutation.Type)
	}
	if mutation.LocationKey == "" {
		return fmt.Errorf("mutation has no location key")
	}
	for i, deferred := range mutation.Entities {
		if deferred.LocationKey != mutation.LocationKey {
			return fmt.Errorf("entity %d has location key %q, expected %q", i, deferred.LocationKey, mutation.LocationKey)
		}
	}
	return nil
}

// Refs returns the sorted entity references of the mutation.
func (mutation Mutation) Refs() []string {
	refs := make([]string, 0, len(mutation.Entities))
	for _, deferred := range mutation.Entities {
		refs = append(refs, entity.Ref(deferred.Entity))
	}
	sort.Strings(refs)
	return refs
}

// Keys returns the sorted storage keys of the mutation's entities.
func (mutation Mutation) Keys() []string {
	keys := make([]string, 0, len(mutation.Entities))
	for _, deferred := range mutation.Entities {
		keys = append(keys, Key(deferred.Entity))
	}
	sort.Strings(keys)
	return keys
}

// Key identifies an entity within its location key: the resource id
// annotation when present, the entity reference otherwise. Names are not
// unique across resource groups.
func Key(e value.Value) string {
	if metadata, ok := e.Get("metadata"); ok {
		if annotations, ok := metadata.Get("annotations"); ok {
			if resourceID, ok := annotations.GetString(entity.AnnotationResourceID); ok && resourceID != "" {
				return resourceID
			}
		}
	}
	return entity.Ref(e)
}

// removedRefs lists the entries of previous that are not in current.
func removedRefs(previous []string, current []string) []string {
	kept := make(map[string]bool, len(current))
	for _, ref := range current {
		kept[ref] = true
	}
	removed := []string{}
	for _, ref := range previous {
		if !kept[ref] {
			removed = append(removed, ref)
		}
	}
	sort.Strings(removed)
	return removed
}

// FileName turns a location key into a file name without path separators.
func FileName(locationKey string, extension string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(locationKey) + "." + extension
}
