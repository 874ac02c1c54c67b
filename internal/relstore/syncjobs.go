package relstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/docindex/internal/apperrors"
)

// CreateSyncJob inserts a new job in NEW status for docID, or returns the
// existing job if one is already present (UNIQUE(doc_id) makes this the
// natural coalescing point for triggerSync, per spec §5's per-docId
// serialization invariant).
func (s *Store) CreateSyncJob(ctx context.Context, docID string) (*SyncJob, error) {
	if existing, err := s.GetSyncJobByDocID(ctx, docID); err == nil {
		return existing, nil
	} else if !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	job := &SyncJob{
		ID:        uuid.New().String(),
		DocID:     docID,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (id, doc_id, status, retries, error, error_category, last_retry_strategy, duration_ms, progress, created_at, updated_at)
		VALUES (?, ?, ?, 0, '', '', '', 0, 0, ?, ?)`,
		job.ID, job.DocID, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "creating sync job", err)
	}
	return job, nil
}

// GetSyncJobByDocID retrieves the (unique) job for a document.
func (s *Store) GetSyncJobByDocID(ctx context.Context, docID string) (*SyncJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, doc_id, status, retries, last_attempt_at, error, error_category, last_retry_strategy,
		       started_at, completed_at, duration_ms, progress, created_at, updated_at
		FROM sync_jobs WHERE doc_id = ?`, docID)
	return scanSyncJob(row)
}

func scanSyncJob(row *sql.Row) (*SyncJob, error) {
	var j SyncJob
	err := row.Scan(&j.ID, &j.DocID, &j.Status, &j.Retries, &j.LastAttemptAt, &j.Error, &j.ErrorCategory,
		&j.LastRetryStrategy, &j.StartedAt, &j.CompletedAt, &j.DurationMs, &j.Progress, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("sync job not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "scanning sync job", err)
	}
	return &j, nil
}

// UpdateSyncJob persists the full job record. The state machine (internal/
// syncengine) is the sole caller that mutates Status; this method exists so
// RelStore stays a thin persistence layer with no transition logic (per
// spec's DESIGN NOTES: "a typed job record stored in RelStore is the
// source of truth").
func (s *Store) UpdateSyncJob(ctx context.Context, job *SyncJob) error {
	job.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_jobs SET
			status = ?, retries = ?, last_attempt_at = ?, error = ?, error_category = ?,
			last_retry_strategy = ?, started_at = ?, completed_at = ?, duration_ms = ?,
			progress = ?, updated_at = ?
		WHERE doc_id = ?`,
		job.Status, job.Retries, job.LastAttemptAt, job.Error, job.ErrorCategory,
		job.LastRetryStrategy, job.StartedAt, job.CompletedAt, job.DurationMs,
		job.Progress, job.UpdatedAt, job.DocID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "updating sync job", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "checking sync job update", err)
	}
	if rows == 0 {
		return apperrors.NotFound("sync job not found: " + job.DocID)
	}
	return nil
}

// ListSyncJobsByStatus returns every job in one of the given statuses —
// used by recover() at startup (spec §4.7).
func (s *Store) ListSyncJobsByStatus(ctx context.Context, statuses []SyncJobStatus) ([]SyncJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = string(st)
	}

	query := `
		SELECT id, doc_id, status, retries, last_attempt_at, error, error_category, last_retry_strategy,
		       started_at, completed_at, duration_ms, progress, created_at, updated_at
		FROM sync_jobs WHERE status IN (` + joinPlaceholders(placeholders) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing sync jobs by status", err)
	}
	defer closeRows(rows, s.logger, "list sync jobs by status")

	var out []SyncJob
	for rows.Next() {
		var j SyncJob
		if err := rows.Scan(&j.ID, &j.DocID, &j.Status, &j.Retries, &j.LastAttemptAt, &j.Error, &j.ErrorCategory,
			&j.LastRetryStrategy, &j.StartedAt, &j.CompletedAt, &j.DurationMs, &j.Progress, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning sync job row", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// PurgeOldJobs deletes historical job rows whose updated_at predates the
// retention window (spec §4.7's cleanup(olderThanHours) contract).
func (s *Store) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_jobs WHERE status IN ('SYNCED', 'DEAD') AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "purging old sync jobs", err)
	}
	return result.RowsAffected()
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}
