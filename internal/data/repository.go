// Package data provides database repository implementations for entity documents.
// Implements repository pattern for clean data access abstraction and testing flexibility.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"adminconsole/internal/value"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRecordNotFound is returned when a write targets a document that does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidIdentifier is returned for table or field names that cannot be used in SQL.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Repository stores documents grouped by table. Fields passed in and returned
// are in storage shape.
type Repository interface {
	// Insert stores fields as a new document and assigns its ID and creation time.
	Insert(ctx context.Context, table string, fields value.Record) (*Document, error)

	// Get returns the document, or nil with a nil error when it does not exist.
	Get(ctx context.Context, table, id string) (*Document, error)

	// List returns every document of table in insertion order.
	List(ctx context.Context, table string) ([]*Document, error)

	// Replace overwrites all fields of an existing document; keys missing from
	// fields are cleared. Returns ErrRecordNotFound when id does not exist.
	Replace(ctx context.Context, table, id string, fields value.Record) error

	// Delete removes the document. Deleting a missing id is not an error.
	Delete(ctx context.Context, table, id string) error

	// FindByField returns the documents whose field equals v.
	FindByField(ctx context.Context, table, field string, v value.Value) ([]*Document, error)

	// EnsureIndex prepares an index for FindByField lookups on field.
	EnsureIndex(ctx context.Context, table, field string) error

	// Health reports connectivity and backend specific details.
	Health(ctx context.Context) (map[string]interface{}, error)

	// Close releases database connections and cleanup resources.
	Close() error
}

var identifierRX = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifiers(names ...string) error {
	for _, name := range names {
		if !identifierRX.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func newDocumentID() string {
	return uuid.NewString()
}

func decodeBody(body []byte) (value.Record, error) {
	var rec value.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode document body: %w", err)
	}
	return value.APIToStorage(rec), nil
}

// PostgreSQLRepository implements Repository on a single JSONB table.
// Uses pgx driver with connection pooling for optimal performance and resource management.
type PostgreSQLRepository struct {
	// pool provides connection pooling for database operations
	pool *pgxpool.Pool
	// timeout configures default operation timeout for database queries
	timeout time.Duration
	now     func() time.Time
}

// NewPostgreSQLRepository creates a new PostgreSQL repository instance.
// Requires an active pgxpool connection pool and optional timeout configuration.
func NewPostgreSQLRepository(pool *pgxpool.Pool, timeout time.Duration) *PostgreSQLRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PostgreSQLRepository{
		pool:    pool,
		timeout: timeout,
		now:     time.Now,
	}
}

// Migrate creates the documents table if it does not exist.
func (r *PostgreSQLRepository) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			seq           BIGSERIAL PRIMARY KEY,
			tbl           TEXT NOT NULL,
			id            TEXT NOT NULL UNIQUE,
			creation_time DOUBLE PRECISION NOT NULL,
			body          JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS documents_tbl_seq ON documents (tbl, seq);
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Insert implements Repository.Insert.
func (r *PostgreSQLRepository) Insert(ctx context.Context, table string, fields value.Record) (*Document, error) {
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

	_, err = r.pool.Exec(ctx, `
		INSERT INTO documents (tbl, id, creation_time, body) VALUES ($1, $2, $3, $4::jsonb)
	`, table, doc.ID, doc.CreationTime, string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return doc, nil
}

// Get implements Repository.Get.
func (r *PostgreSQLRepository) Get(ctx context.Context, table, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, creation_time, body FROM documents WHERE tbl = $1 AND id = $2
	`, table, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s/%s: %w", table, id, err)
	}
	docs, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// List implements Repository.List.
func (r *PostgreSQLRepository) List(ctx context.Context, table string) ([]*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, creation_time, body FROM documents WHERE tbl = $1 ORDER BY seq
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return r.collect(rows)
}

// Replace implements Repository.Replace.
func (r *PostgreSQLRepository) Replace(ctx context.Context, table, id string, fields value.Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(value.APIToStorage(fields))
	if err != nil {
		return fmt.Errorf("encode document body: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET body = $3::jsonb WHERE tbl = $1 AND id = $2
	`, table, id, string(body))
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete implements Repository.Delete.
func (r *PostgreSQLRepository) Delete(ctx context.Context, table, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE tbl = $1 AND id = $2`, table, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, id, err)
	}
	return nil
}

// FindByField implements Repository.FindByField.
func (r *PostgreSQLRepository) FindByField(ctx context.Context, table, field string, v value.Value) ([]*Document, error) {
	if err := checkIdentifiers(table, field); err != nil {
		return nil, err
	}
	needle, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode lookup value: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, findByFieldQuery(table, field), string(needle))
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s by %s: %w", table, field, err)
	}
	return r.collect(rows)
}

// findByFieldQuery inlines both the table and the field as literals so the
// planner can match the partial expression index from EnsureIndex, even
// once the statement is cached with a generic plan.
func findByFieldQuery(table, field string) string {
	return fmt.Sprintf(`
		SELECT id, creation_time, body FROM documents
		WHERE tbl = %s AND (body -> %s) = $1::jsonb
		ORDER BY seq
	`, quoteLiteral(table), quoteLiteral(field))
}

// EnsureIndex implements Repository.EnsureIndex with a partial expression index.
func (r *PostgreSQLRepository) EnsureIndex(ctx context.Context, table, field string) error {
	if err := checkIdentifiers(table, field); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name := pgx.Identifier{fmt.Sprintf("documents_%s_by_%s", table, field)}.Sanitize()
	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON documents ((body -> %s)) WHERE tbl = %s`,
		name, quoteLiteral(field), quoteLiteral(table))

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create index on %s.%s: %w", table, field, err)
	}
	return nil
}

// Close implements Repository.Close.
// Closes the connection pool and releases database resources.
func (r *PostgreSQLRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// Health checks the database connectivity and returns connection pool metrics.
// Used by health check endpoints for operational monitoring.
func (r *PostgreSQLRepository) Health(ctx context.Context) (map[string]interface{}, error) {
	// Create context with shorter timeout for health checks
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return map[string]interface{}{
			"status":      "unhealthy",
			"error":       err.Error(),
			"connections": "unknown",
		}, err
	}

	stat := r.pool.Stat()

	return map[string]interface{}{
		"status":               "healthy",
		"backend":              "postgres",
		"total_connections":    stat.TotalConns(),
		"idle_connections":     stat.IdleConns(),
		"acquired_connections": stat.AcquiredConns(),
		"max_connections":      stat.MaxConns(),
	}, nil
}

// collect scans id, creation_time, body rows and closes rows.
func (r *PostgreSQLRepository) collect(rows pgx.Rows) ([]*Document, error) {
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		var (
			doc  Document
			body []byte
		)
		if err := rows.Scan(&doc.ID, &doc.CreationTime, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		doc.Fields = fields
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return docs, nil
}

// Compile-time verification that PostgreSQLRepository implements Repository
var _ Repository = (*PostgreSQLRepository)(nil)
