// Package merge deep-merges entity trees.
package merge

import "github.com/azure/resource-graph-catalog-ingester/value"

// Merge overlays one value onto another. When both are Objects the result
// holds the union of their keys and shared keys are merged recursively. In
// every other case, arrays and type mismatches included, overlay replaces
// base outright. Neither input is modified.
func Merge(base value.Value, overlay value.Value) value.Value {
	if !base.IsObject() || !overlay.IsObject() {
		return overlay
	}

	fields := base.Fields()
	for _, key := range overlay.Keys() {
		overlayField, _ := overlay.Get(key)
		if baseField, exists := fields[key]; exists {
			fields[key] = Merge(baseField, overlayField)
			continue
		}
		fields[key] = overlayField
	}
	return value.Object(fields)
}

// All folds Merge over values from left to right.
func All(values ...value.Value) value.Value {
	if len(values) == 0 {
		return value.Null()
	}
	merged := values[0]
	for _, overlay := range values[1:] {
		merged = Merge(merged, overlay)
	}
	return merged
}
