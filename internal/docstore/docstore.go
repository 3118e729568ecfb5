// ABOUTME: Store interface and document types for hierarchical document persistence
// ABOUTME: Defines paths, queries, and atomic write batches shared by all backends

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a single stored document: a flat-to-nested map of
// JSON-representable values keyed by field name.
type Document map[string]any

// Direction controls query ordering.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Filter is an inequality condition on a single top-level field.
type Filter struct {
	Field string
	Op    string // one of ">", ">=", "<", "<="
	Value any
}

// Query describes an ordered, optionally filtered read of one collection.
// OrderBy is required. Limit <= 0 means no limit.
type Query struct {
	OrderBy   string
	Direction Direction
	Filter    *Filter
	Limit     int
}

// Snapshot pairs a document with the path it was read from.
type Snapshot struct {
	Path string
	Doc  Document
}

// Store is the capability a document backend must provide: point reads and
// writes on slash-separated hierarchical paths, ordered sub-collection
// queries, and all-or-nothing write batches.
//
// A document path has an even number of segments
// (collection/id/collection/id/...); a collection path has an odd number.
type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)

	// Set writes the full document at path, creating or replacing it.
	Set(ctx context.Context, path string, doc Document) error

	// Merge upserts the given top-level fields into the document at path,
	// leaving unrelated fields untouched. Creates the document if absent.
	Merge(ctx context.Context, path string, fields Document) error

	// Update writes the given fields into an existing document. Field names
	// may be dotted paths ("state.x") addressing nested map entries.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, path string, fields Document) error

	// Delete removes the document at path. Deleting an absent document is
	// not an error.
	Delete(ctx context.Context, path string) error

	// Query reads documents from the collection at path per q.
	Query(ctx context.Context, path string, q Query) ([]Snapshot, error)

	// Batch starts an ordered write batch. Writes are buffered until
	// Commit, which applies all of them atomically or none.
	Batch() Batch

	// Close releases any resources held by the store.
	Close() error
}

// Batch buffers heterogeneous writes for a single atomic commit.
type Batch interface {
	Set(path string, doc Document)
	Merge(path string, fields Document)
	Update(path string, fields Document)
	Delete(path string)
	Commit(ctx context.Context) error
}

// CollectionOf returns the collection path a document path belongs to.
func CollectionOf(docPath string) string {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return ""
	}
	return docPath[:i]
}

// validateDocPath checks that path addresses a document (even segment count,
// no empty segments).
func validateDocPath(path string) error {
	return validatePath(path, true)
}

// validateCollectionPath checks that path addresses a collection.
func validateCollectionPath(path string) error {
	return validatePath(path, false)
}

func validatePath(path string, wantDoc bool) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("path %q has an empty segment", path)
		}
	}
	isDoc := len(segments)%2 == 0
	if wantDoc && !isDoc {
		return fmt.Errorf("path %q is not a document path", path)
	}
	if !wantDoc && isDoc {
		return fmt.Errorf("path %q is not a collection path", path)
	}
	return nil
}

// validOps are the inequality operators supported by Query filters.
var validOps = map[string]bool{">": true, ">=": true, "<": true, "<=": true}

func validateQuery(q Query) error {
	if q.OrderBy == "" {
		return fmt.Errorf("query requires an order-by field")
	}
	if q.Filter != nil {
		if q.Filter.Field == "" {
			return fmt.Errorf("filter requires a field")
		}
		if !validOps[q.Filter.Op] {
			return fmt.Errorf("unsupported filter op %q", q.Filter.Op)
		}
	}
	return nil
}

// setField writes value into doc at a dotted field path, creating
// intermediate maps as needed. Intermediate non-map values are replaced.
func setField(doc Document, field string, value any) {
	parts := strings.Split(field, ".")
	m := map[string]any(doc)
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// cloneDoc deep-copies a document so callers cannot alias stored state.
func cloneDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// compareValues orders two field values for query sorting and filtering.
// Numbers compare numerically across int/float representations, strings
// lexicographically. Mismatched or non-comparable types order by type name
// so sorts stay deterministic.
func compareValues(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs)
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// matchesFilter reports whether value satisfies the filter condition.
func matchesFilter(value any, f *Filter) bool {
	if f == nil {
		return true
	}
	c := compareValues(value, f.Value)
	switch f.Op {
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	}
	return false
}
