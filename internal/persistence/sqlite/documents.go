// Package sqlite implements persistence.Store as JSON documents in a single SQLite table.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/facility-reservations/internal/persistence"
	"github.com/example/facility-reservations/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// DocumentStore keeps every collection in the documents table, one JSON body per row.
// Listing follows rowid order, which is insertion order; SetByID upserts keep the rowid.
type DocumentStore struct {
	pool   *ConnectionPool
	retry  RetryConfig
	newID  func() string
	logger *slog.Logger
}

// Open connects to the database described by config and applies pending migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*DocumentStore, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	store := NewDocumentStore(pool, logger)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewDocumentStore wraps an existing pool. The schema is expected to be migrated.
func NewDocumentStore(pool *ConnectionPool, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{
		pool:   pool,
		retry:  DefaultRetryConfig(),
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Migrate applies the embedded schema migrations.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewExecutor(s.pool.DB()), migrationFiles, migrationDir, s.logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *DocumentStore) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	manager := migration.NewManager(migration.NewExecutor(s.pool.DB()), migrationFiles, migrationDir, s.logger)
	return manager.Status(ctx)
}

// Close releases the connection pool.
func (s *DocumentStore) Close() error {
	return s.pool.Close()
}

// ListAll returns every document of the collection in insertion order.
func (s *DocumentStore) ListAll(ctx context.Context, collection string) ([]persistence.Document, error) {
	rows, err := s.pool.DB().QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", collection, MapError(err))
	}
	return scanDocuments(rows)
}

// Insert stores a new document under a generated id.
func (s *DocumentStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	body, err := encodeBody(fields)
	if err != nil {
		return "", err
	}
	id := s.newID()
	err = withRetry(ctx, s.retry, func() error {
		_, execErr := s.pool.DB().ExecContext(ctx,
			`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`, collection, id, body)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("sqlite: insert %s/%s: %w", collection, id, MapError(err))
	}
	return id, nil
}

// SetByID creates or replaces the document with the given id.
func (s *DocumentStore) SetByID(ctx context.Context, collection, id string, fields map[string]any) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	err = withRetry(ctx, s.retry, func() error {
		_, execErr := s.pool.DB().ExecContext(ctx, `
			INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
			collection, id, body)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("sqlite: set %s/%s: %w", collection, id, MapError(err))
	}
	return nil
}

// UpdateByID merges fields into an existing document.
func (s *DocumentStore) UpdateByID(ctx context.Context, collection, id string, fields map[string]any) error {
	return withRetry(ctx, s.retry, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var raw string
			err := tx.QueryRowContext(ctx,
				`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
			if err != nil {
				return MapError(err)
			}

			merged, err := decodeBody(raw)
			if err != nil {
				return fmt.Errorf("sqlite: decode %s/%s: %w", collection, id, err)
			}
			for k, v := range fields {
				merged[k] = v
			}

			body, err := encodeBody(merged)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, body, collection, id); err != nil {
				return MapError(err)
			}
			return nil
		})
	})
}

// DeleteByID removes a document.
func (s *DocumentStore) DeleteByID(ctx context.Context, collection, id string) error {
	var result sql.Result
	err := withRetry(ctx, s.retry, func() error {
		var execErr error
		result, execErr = s.pool.DB().ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("sqlite: delete %s/%s: %w", collection, id, MapError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetByID returns a single document.
func (s *DocumentStore) GetByID(ctx context.Context, collection, id string) (persistence.Document, error) {
	var raw string
	err := s.pool.DB().QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Document{}, persistence.ErrNotFound
		}
		return persistence.Document{}, fmt.Errorf("sqlite: get %s/%s: %w", collection, id, err)
	}
	fields, err := decodeBody(raw)
	if err != nil {
		return persistence.Document{}, fmt.Errorf("sqlite: decode %s/%s: %w", collection, id, err)
	}
	return persistence.Document{ID: id, Fields: fields}, nil
}

// QueryByField returns the documents whose top-level field equals value.
func (s *DocumentStore) QueryByField(ctx context.Context, collection, field string, value any) ([]persistence.Document, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT id, body FROM documents
		WHERE collection = ? AND json_extract(body, '$."' || ? || '"') = ?
		ORDER BY rowid`,
		collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %s.%s: %w", collection, field, MapError(err))
	}
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]persistence.Document, error) {
	defer rows.Close()

	var docs []persistence.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan document: %w", err)
		}
		fields, err := decodeBody(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode %s: %w", id, err)
		}
		docs = append(docs, persistence.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate documents: %w", err)
	}
	return docs, nil
}

func encodeBody(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", persistence.ErrInvalidDocument, err)
	}
	return string(body), nil
}

// decodeBody keeps numbers as json.Number so integers survive the round trip.
func decodeBody(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", persistence.ErrInvalidDocument, err)
	}
	return fields, nil
}

var _ persistence.Store = (*DocumentStore)(nil)
