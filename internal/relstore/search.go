package relstore

import (
	"context"
	"strings"

	"github.com/example/docindex/internal/apperrors"
)

// FTSSearch implements the C3 contract's ftsSearch(query, collectionId,
// limit) → seq<{pointId, rank}>, with rank being FTS5's bm25() rank (lower
// is better, per spec §4.1).
func (s *Store) FTSSearch(ctx context.Context, query, collectionID string, limit int) ([]FTSHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("search query must not be empty")
	}
	if limit <= 0 {
		return nil, apperrors.Validation("limit must be positive")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.point_id, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ? AND c.collection_id = ?
		ORDER BY rank
		LIMIT ?`, query, collectionID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependencyTransient, "fts search", err)
	}
	defer closeRows(rows, s.logger, "fts search")

	var out []FTSHit
	for rows.Next() {
		var hit FTSHit
		if err := rows.Scan(&hit.PointID, &hit.Rank); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning fts hit", err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}
