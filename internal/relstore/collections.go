package relstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/docindex/internal/apperrors"
)

// CreateCollection inserts a new collection, generating an id if one is not
// already set.
func (s *Store) CreateCollection(ctx context.Context, name, description string) (*Collection, error) {
	now := time.Now().UTC()
	c := &Collection{
		CollectionID: uuid.New().String(),
		Name:         name,
		Description:  description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (collection_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.CollectionID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConflict, "creating collection", err)
	}

	s.logger.Info("created collection", "collection_id", c.CollectionID, "name", c.Name)
	return c, nil
}

// GetCollection retrieves a collection by id.
func (s *Store) GetCollection(ctx context.Context, collectionID string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT collection_id, name, description, created_at, updated_at FROM collections WHERE collection_id = ?`,
		collectionID,
	)
	return scanCollection(row)
}

// GetCollectionByName retrieves a collection by its unique name.
func (s *Store) GetCollectionByName(ctx context.Context, name string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT collection_id, name, description, created_at, updated_at FROM collections WHERE name = ?`,
		name,
	)
	return scanCollection(row)
}

func scanCollection(row *sql.Row) (*Collection, error) {
	var c Collection
	err := row.Scan(&c.CollectionID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("collection not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "scanning collection", err)
	}
	return &c, nil
}

// ListCollections returns every collection, ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_id, name, description, created_at, updated_at FROM collections ORDER BY name`,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing collections", err)
	}
	defer closeRows(rows, s.logger, "list collections")

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.CollectionID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning collection row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCollection cascades: removes chunk_meta, chunks, sync_jobs, docs,
// and the collection row itself inside one transaction, per spec §6's
// cascade contract and §8's invariant that deleting a collection leaves
// zero rows for it in chunks/docs/chunk_meta.
func (s *Store) DeleteCollection(ctx context.Context, collectionID string) error {
	return s.runInTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM chunk_meta WHERE collection_id = ?`,
			`DELETE FROM chunks WHERE collection_id = ?`,
			`DELETE FROM sync_jobs WHERE doc_id IN (SELECT doc_id FROM docs WHERE collection_id = ?)`,
			`DELETE FROM docs WHERE collection_id = ?`,
			`DELETE FROM collections WHERE collection_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, collectionID); err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "cascade deleting collection", err)
			}
		}
		return nil
	})
}
