// ABOUTME: In-memory Store implementation backed by a mutex-guarded map
// ABOUTME: Used by unit tests and mem:// store URIs

package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store implementation. It is safe for
// concurrent use and provides the same semantics as the SQLite backend,
// including batch atomicity.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document // keyed by document path
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
	}
}

// Get returns a copy of the document at path.
func (m *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	if err := validateDocPath(path); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

// Set writes the full document at path.
func (m *MemoryStore) Set(ctx context.Context, path string, doc Document) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[path] = cloneDoc(doc)
	return nil
}

// Merge upserts top-level fields into the document at path.
func (m *MemoryStore) Merge(ctx context.Context, path string, fields Document) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mergeLocked(path, fields)
	return nil
}

func (m *MemoryStore) mergeLocked(path string, fields Document) {
	doc, ok := m.docs[path]
	if !ok {
		doc = make(Document)
		m.docs[path] = doc
	}
	for k, v := range fields {
		doc[k] = cloneValue(v)
	}
}

// Update writes dotted-path fields into an existing document.
// Returns ErrNotFound if the document does not exist.
func (m *MemoryStore) Update(ctx context.Context, path string, fields Document) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.updateLocked(path, fields)
}

func (m *MemoryStore) updateLocked(path string, fields Document) error {
	doc, ok := m.docs[path]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		setField(doc, k, cloneValue(v))
	}
	return nil
}

// Delete removes the document at path. Absent documents are a no-op.
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, path)
	return nil
}

// Query reads documents from the collection at path, ordered by q.OrderBy.
// Documents missing the order-by field sort first in ascending order.
func (m *MemoryStore) Query(ctx context.Context, path string, q Query) ([]Snapshot, error) {
	if err := validateCollectionPath(path); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var snaps []Snapshot
	for docPath, doc := range m.docs {
		if CollectionOf(docPath) != path {
			continue
		}
		if q.Filter != nil && !matchesFilter(doc[q.Filter.Field], q.Filter) {
			continue
		}
		snaps = append(snaps, Snapshot{Path: docPath, Doc: cloneDoc(doc)})
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		c := compareValues(snaps[i].Doc[q.OrderBy], snaps[j].Doc[q.OrderBy])
		if c == 0 {
			// Tie-break on path for deterministic ordering
			if q.Direction == Descending {
				return snaps[i].Path > snaps[j].Path
			}
			return snaps[i].Path < snaps[j].Path
		}
		if q.Direction == Descending {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(snaps) > q.Limit {
		snaps = snaps[:q.Limit]
	}
	return snaps, nil
}

// Batch starts a new write batch against this store.
func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// batchOp is a single buffered write.
type batchOp struct {
	kind   string // "set", "merge", "update", "delete"
	path   string
	fields Document
}

type memoryBatch struct {
	store *MemoryStore
	ops   []batchOp
}

func (b *memoryBatch) Set(path string, doc Document) {
	b.ops = append(b.ops, batchOp{kind: "set", path: path, fields: cloneDoc(doc)})
}

func (b *memoryBatch) Merge(path string, fields Document) {
	b.ops = append(b.ops, batchOp{kind: "merge", path: path, fields: cloneDoc(fields)})
}

func (b *memoryBatch) Update(path string, fields Document) {
	b.ops = append(b.ops, batchOp{kind: "update", path: path, fields: cloneDoc(fields)})
}

func (b *memoryBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{kind: "delete", path: path})
}

// Commit applies all buffered writes atomically. The batch is validated
// in full before any write lands, so a failing Update leaves the store
// untouched.
func (b *memoryBatch) Commit(ctx context.Context) error {
	m := b.store

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate first: paths must be well-formed and every Update target
	// must exist, accounting for documents created earlier in this batch.
	created := make(map[string]bool)
	deleted := make(map[string]bool)
	for _, op := range b.ops {
		if err := validateDocPath(op.path); err != nil {
			return fmt.Errorf("batch %s: %w", op.kind, err)
		}
		switch op.kind {
		case "set", "merge":
			created[op.path] = true
			delete(deleted, op.path)
		case "delete":
			deleted[op.path] = true
			delete(created, op.path)
		case "update":
			_, exists := m.docs[op.path]
			if deleted[op.path] || (!exists && !created[op.path]) {
				return fmt.Errorf("batch update %s: %w", op.path, ErrNotFound)
			}
		}
	}

	for _, op := range b.ops {
		switch op.kind {
		case "set":
			m.docs[op.path] = op.fields
		case "merge":
			m.mergeLocked(op.path, op.fields)
		case "update":
			if err := m.updateLocked(op.path, op.fields); err != nil {
				return err
			}
		case "delete":
			delete(m.docs, op.path)
		}
	}
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
