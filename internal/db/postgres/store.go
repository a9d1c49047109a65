// Package postgres serves authoritative records from PostgreSQL tables, one table per document type.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
)

// Compile-time check: Store implements db.RecordStore.
var _ db.RecordStore = (*Store)(nil)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store reads records with one SELECT per batch.
type Store struct {
	db     *sql.DB
	tables map[string]string
}

// Open connects to PostgreSQL through the pgx driver.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)
	return conn, nil
}

// NewStore wraps an open database. tables maps document types to table names;
// a type without an entry is read from the table of the same name.
func NewStore(conn *sql.DB, tables map[string]string) *Store {
	return &Store{db: conn, tables: tables}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for postgres: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) table(docType string) string {
	if t, ok := s.tables[docType]; ok {
		return t
	}
	return docType
}

// FetchBatch selects every row whose key column matches one of ids.
// Keys are compared as text so numeric and string keys behave the same.
func (s *Store) FetchBatch(
	ctx context.Context, docType, keyField string, ids []string,
) (map[string]record.Record, error) {
	out := make(map[string]record.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	table := s.table(docType)
	if !identifier.MatchString(table) || !identifier.MatchString(keyField) {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("invalid identifier %q.%q", table, keyField)}
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	q := fmt.Sprintf(`SELECT * FROM "%s" WHERE "%s"::text IN (%s)`,
		table, keyField, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("columns: %w", err)}
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("scan: %w", err)}
		}

		fields := make(map[string]any, len(cols))
		for i, c := range cols {
			fields[c] = normalize(values[i])
		}
		id := fmt.Sprint(fields[keyField])
		out[id] = record.Reconstruct(id, docType, fields)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("iterate rows: %w", err)}
	}
	return out, nil
}

// normalize turns driver byte slices into strings so records stay JSON friendly.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
