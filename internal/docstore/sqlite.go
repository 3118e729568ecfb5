// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Documents are stored as JSON rows queried via the JSON1 extension

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface on a single SQLite database.
// Each document is one row; ordered and filtered queries use json_extract
// on the serialized document, and batches commit inside one transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "docstore")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite document store initialized", "path", path)
	return s, nil
}

// createSchema creates the documents table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection
			ON documents(collection);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite document store")
	return s.db.Close()
}

// execer covers both *sql.DB and *sql.Tx so point writes and batch writes
// share one implementation.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the document at path, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, path string) (Document, error) {
	if err := validateDocPath(path); err != nil {
		return nil, err
	}
	return getDoc(ctx, s.db, path)
}

func getDoc(ctx context.Context, e execer, path string) (Document, error) {
	var data string
	err := e.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", path, err)
	}
	return doc, nil
}

// Set writes the full document at path, creating or replacing it.
func (s *SQLiteStore) Set(ctx context.Context, path string, doc Document) error {
	if err := validateDocPath(path); err != nil {
		return err
	}
	return setDoc(ctx, s.db, path, doc)
}

func setDoc(ctx context.Context, e execer, path string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", path, err)
	}

	_, err = e.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (path, collection, data, updated_at)
		VALUES (?, ?, ?, ?)
	`, path, CollectionOf(path), string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing document %s: %w", path, err)
	}
	return nil
}

// Merge upserts top-level fields into the document at path inside a
// transaction, so concurrent mergers cannot lose each other's fields.
func (s *SQLiteStore) Merge(ctx context.Context, path string, fields Document) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := mergeDoc(ctx, tx, path, fields); err != nil {
		return err
	}
	return tx.Commit()
}

func mergeDoc(ctx context.Context, e execer, path string, fields Document) error {
	doc, err := getDoc(ctx, e, path)
	if err == ErrNotFound {
		doc = make(Document)
	} else if err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	return setDoc(ctx, e, path, doc)
}

// Update writes dotted-path fields into an existing document.
// Returns ErrNotFound if the document does not exist.
func (s *SQLiteStore) Update(ctx context.Context, path string, fields Document) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateDoc(ctx, tx, path, fields); err != nil {
		return err
	}
	return tx.Commit()
}

func updateDoc(ctx context.Context, e execer, path string, fields Document) error {
	doc, err := getDoc(ctx, e, path)
	if err != nil {
		return err
	}
	for k, v := range fields {
		setField(doc, k, v)
	}
	return setDoc(ctx, e, path, doc)
}

// Delete removes the document at path. Absent documents are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	if err := validateDocPath(path); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", path, err)
	}
	return nil
}

// Query reads documents from the collection at path, ordered by the
// json-extracted order-by field. The direction and operator are validated
// before being spliced into the SQL text.
func (s *SQLiteStore) Query(ctx context.Context, path string, q Query) ([]Snapshot, error) {
	if err := validateCollectionPath(path); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query := `SELECT path, data FROM documents WHERE collection = ?`
	args := []any{path}

	if q.Filter != nil {
		query += ` AND json_extract(data, ?) ` + q.Filter.Op + ` ?`
		args = append(args, "$."+q.Filter.Field, q.Filter.Value)
	}

	dir := "ASC"
	if q.Direction == Descending {
		dir = "DESC"
	}
	query += ` ORDER BY json_extract(data, ?) ` + dir + `, path ` + dir
	args = append(args, "$."+q.OrderBy)

	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", path, err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var docPath, data string
		if err := rows.Scan(&docPath, &data); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		var doc Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", docPath, err)
		}
		snaps = append(snaps, Snapshot{Path: docPath, Doc: doc})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return snaps, nil
}

// Batch starts a new write batch against this store.
func (s *SQLiteStore) Batch() Batch {
	return &sqliteBatch{store: s}
}

type sqliteBatch struct {
	store *SQLiteStore
	ops   []batchOp
}

func (b *sqliteBatch) Set(path string, doc Document) {
	b.ops = append(b.ops, batchOp{kind: "set", path: path, fields: cloneDoc(doc)})
}

func (b *sqliteBatch) Merge(path string, fields Document) {
	b.ops = append(b.ops, batchOp{kind: "merge", path: path, fields: cloneDoc(fields)})
}

func (b *sqliteBatch) Update(path string, fields Document) {
	b.ops = append(b.ops, batchOp{kind: "update", path: path, fields: cloneDoc(fields)})
}

func (b *sqliteBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{kind: "delete", path: path})
}

// Commit applies all buffered writes inside one transaction.
func (b *sqliteBatch) Commit(ctx context.Context) error {
	for _, op := range b.ops {
		if err := validateDocPath(op.path); err != nil {
			return fmt.Errorf("batch %s: %w", op.kind, err)
		}
	}

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range b.ops {
		var err error
		switch op.kind {
		case "set":
			err = setDoc(ctx, tx, op.path, op.fields)
		case "merge":
			err = mergeDoc(ctx, tx, op.path, op.fields)
		case "update":
			err = updateDoc(ctx, tx, op.path, op.fields)
		case "delete":
			_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, op.path)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	b.store.logger.Debug("committed batch", "writes", len(b.ops))
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
