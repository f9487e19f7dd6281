package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"adminconsole/internal/value"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteRepository implements Repository on a single SQLite table holding one
// JSON document per row.
type SQLiteRepository struct {
	db      *sql.DB
	path    string
	timeout time.Duration
	now     func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at path and
// applies the schema. Use ":memory:" for a throwaway database.
func NewSQLiteRepository(path string, timeout time.Duration) (*SQLiteRepository, error) {
	if path == "" {
		path = "adminconsole.db"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db, path: path, timeout: timeout, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS documents (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			tbl           TEXT NOT NULL,
			id            TEXT NOT NULL UNIQUE,
			creation_time REAL NOT NULL,
			body          TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_tbl_seq ON documents (tbl, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}

// Insert implements Repository.Insert.
func (r *SQLiteRepository) Insert(ctx context.Context, table string, fields value.Record) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := &Document{
		ID:           newDocumentID(),
		CreationTime: creationTime(r.now()),
		Fields:       value.APIToStorage(fields),
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode document body: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (tbl, id, creation_time, body) VALUES (?, ?, ?, ?)`,
		table, doc.ID, doc.CreationTime, string(body))
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return doc, nil
}

// Get implements Repository.Get.
func (r *SQLiteRepository) Get(ctx context.Context, table, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		doc  Document
		body string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, creation_time, body FROM documents WHERE tbl = ? AND id = ?`, table, id).
		Scan(&doc.ID, &doc.CreationTime, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", table, id, err)
	}

	doc.Fields, err = decodeBody([]byte(body))
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List implements Repository.List.
func (r *SQLiteRepository) List(ctx context.Context, table string) ([]*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, creation_time, body FROM documents WHERE tbl = ? ORDER BY seq`, table)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return scanDocuments(rows)
}

// Replace implements Repository.Replace.
func (r *SQLiteRepository) Replace(ctx context.Context, table, id string, fields value.Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(value.APIToStorage(fields))
	if err != nil {
		return fmt.Errorf("encode document body: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE tbl = ? AND id = ?`, string(body), table, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete implements Repository.Delete.
func (r *SQLiteRepository) Delete(ctx context.Context, table, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE tbl = ? AND id = ?`, table, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// FindByField implements Repository.FindByField. The JSON path is inlined so
// that the expression index created by EnsureIndex matches.
func (r *SQLiteRepository) FindByField(ctx context.Context, table, field string, v value.Value) ([]*Document, error) {
	if err := checkIdentifiers(table, field); err != nil {
		return nil, err
	}

	var arg any
	switch v.Kind() {
	case value.KindNumber:
		arg, _ = v.Float()
	case value.KindString:
		arg, _ = v.Str()
	default:
		return nil, fmt.Errorf("lookup by %s: unsupported value kind %s", field, v.Kind())
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(
		`SELECT id, creation_time, body FROM documents WHERE tbl = ? AND json_extract(body, %s) = ? ORDER BY seq`,
		quoteLiteral("$."+field))

	rows, err := r.db.QueryContext(ctx, query, table, arg)
	if err != nil {
		return nil, fmt.Errorf("look up %s by %s: %w", table, field, err)
	}
	return scanDocuments(rows)
}

// EnsureIndex implements Repository.EnsureIndex.
func (r *SQLiteRepository) EnsureIndex(ctx context.Context, table, field string) error {
	if err := checkIdentifiers(table, field); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS documents_%s_by_%s ON documents (tbl, json_extract(body, %s))`,
		table, field, quoteLiteral("$."+field))
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create index on %s.%s: %w", table, field, err)
	}
	return nil
}

// Health implements Repository.Health.
func (r *SQLiteRepository) Health(ctx context.Context) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}, err
	}

	stats := r.db.Stats()
	return map[string]interface{}{
		"status":           "healthy",
		"backend":          "sqlite",
		"path":             r.path,
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
	}, nil
}

// Close implements Repository.Close.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanDocuments(rows *sql.Rows) ([]*Document, error) {
	defer func() { _ = rows.Close() }()

	docs := []*Document{}
	for rows.Next() {
		var (
			doc  Document
			body string
		)
		if err := rows.Scan(&doc.ID, &doc.CreationTime, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeBody([]byte(body))
		if err != nil {
			return nil, err
		}
		doc.Fields = fields
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

var _ Repository = (*SQLiteRepository)(nil)
