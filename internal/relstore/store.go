// Package relstore implements component C3: a SQLite-backed relational
// store for Collection/Document/Chunk/ChunkMeta/SyncJob records, with an
// FTS5 virtual table kept in sync by triggers (spec §4.1, §6).
package relstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/logging"
)

// Store is the C3 RelStore implementation.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open creates (or attaches to) a SQLite database at cfg.Path, applies the
// configured pragmas, and runs the schema migration.
func Open(cfg *Config, logger logging.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_synchronous=%s", cfg.Path, cfg.JournalMode, cfg.Synchronous)
	if cfg.ForeignKeys {
		dsn += "&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "opening relstore database", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver: serialize writers, avoid SQLITE_BUSY storms

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.KindInternal, "applying relstore schema", err)
	}

	return &Store{db: db, logger: logger.WithComponent("relstore")}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// runInTx implements the C3 contract's transactional coordinator:
// runInTx(fn) → fnResult, used for every multi-row write that spans tables
// (spec §5: "all multi-row writes that span tables ... go through
// runInTx").
func (s *Store) runInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "beginning transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr.Error())
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "committing transaction", err)
	}
	return nil
}

func closeRows(rows *sql.Rows, logger logging.Logger, description string) {
	if err := rows.Close(); err != nil {
		logger.Error("failed to close rows", "description", description, "error", err.Error())
	}
}
