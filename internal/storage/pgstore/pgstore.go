// Package pgstore stores the project collection in PostgreSQL.
//
// Each project is one row holding its JSON document; the row order is kept
// in an explicit position column. A write replaces every row inside a single
// transaction, matching the whole-collection semantics of the file storage.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id       text PRIMARY KEY,
	position integer NOT NULL,
	doc      jsonb NOT NULL
)`

// Storage implements content.Storage on a pgx connection pool.
type Storage struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and creates the table when missing.
func Open(ctx context.Context, databaseURL string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect: %w", content.ErrStorageIO, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", content.ErrStorageIO, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %w", content.ErrStorageIO, err)
	}
	return &Storage{pool: pool}, nil
}

// Close releases the pool.
func (s *Storage) Close() {
	s.pool.Close()
}

// Read implements content.Storage.
func (s *Storage) Read(ctx context.Context) ([]*entity.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM projects ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", content.ErrStorageIO, err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Project, error) {
		var doc []byte
		if err := row.Scan(&doc); err != nil {
			return nil, err
		}
		p := &entity.Project{}
		if err := json.Unmarshal(doc, p); err != nil {
			return nil, err
		}
		p.Normalize()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", content.ErrStorageIO, err)
	}
	if projects == nil {
		projects = []*entity.Project{}
	}
	return projects, nil
}

// Write implements content.Storage.
func (s *Storage) Write(ctx context.Context, projects []*entity.Project) error {
	docs := make([]json.RawMessage, len(projects))
	for i, p := range projects {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal project %q: %w", p.ID, err)
		}
		docs[i] = b
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM projects`); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, p := range projects {
			batch.Queue(`INSERT INTO projects (id, position, doc) VALUES ($1, $2, $3)`, p.ID, i, docs[i])
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", content.ErrStorageIO, err)
	}
	return nil
}
