// Package results merges the JSON result documents written by the
// instrumentation runner into one cumulative document.
package results

import (
	"fmt"
	"sort"
)

// Document is a decoded JSON result object.
type Document map[string]any

// ShapeError reports a field whose accumulated and incoming values cannot be merged.
type ShapeError struct {
	Field    string
	Existing string
	Incoming string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("can't merge results field %q: existing %s, incoming %s", e.Field, e.Existing, e.Incoming)
}

// Merge folds incoming into acc. Missing fields are copied, mappings are
// unioned recursively with incoming values winning, sequences are appended.
// Any other combination is a *ShapeError. Every field is checked before acc is
// touched, so a failed merge leaves acc unchanged.
func Merge(acc, incoming Document) error {
	if err := checkShapes(acc, incoming); err != nil {
		return err
	}
	for k, v := range incoming {
		existing, ok := acc[k]
		if !ok {
			acc[k] = v
			continue
		}
		if in, ok := asMap(v); ok {
			cur, _ := asMap(existing)
			unionMaps(cur, in)
			acc[k] = cur
			continue
		}
		acc[k] = append(existing.([]any), v.([]any)...)
	}
	return nil
}

// checkShapes returns the ShapeError for the first colliding field, in key
// order, whose values cannot be merged.
func checkShapes(acc, incoming Document) error {
	keys := make([]string, 0, len(incoming))
	for k := range incoming {
		if _, ok := acc[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		existing, v := acc[k], incoming[k]
		if !mergeable(existing, v) {
			return &ShapeError{Field: k, Existing: shape(existing), Incoming: shape(v)}
		}
	}
	return nil
}

func mergeable(existing, incoming any) bool {
	if _, ok := asMap(incoming); ok {
		_, ok := asMap(existing)
		return ok
	}
	if _, ok := incoming.([]any); ok {
		_, ok := existing.([]any)
		return ok
	}
	return false
}

func unionMaps(dst, src map[string]any) {
	for k, v := range src {
		if in, ok := asMap(v); ok {
			if cur, ok := asMap(dst[k]); ok {
				unionMaps(cur, in)
				continue
			}
		}
		dst[k] = v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func shape(v any) string {
	switch v.(type) {
	case map[string]any, Document:
		return "mapping"
	case []any:
		return "sequence"
	case nil:
		return "null"
	default:
		return "scalar"
	}
}
