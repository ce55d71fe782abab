package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
	"github.com/FocuswithJustin/NarrativeCues/internal/analysis"
)

var _ analysis.ResultStore = (*Store)(nil)

// LoadResult returns the analysis stored under key if it has not expired
// by now.
func (s *Store) LoadResult(ctx context.Context, key string, now time.Time) (analysis.Result, bool, error) {
	var (
		r    analysis.Result
		cues string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT request_id, reference, raw, cues, attempts
		 FROM analyses WHERE cache_key = ? AND expires_at > ?`,
		key, toMillis(now),
	).Scan(&r.RequestID, &r.Reference, &r.Raw, &cues, &r.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return analysis.Result{}, false, nil
	}
	if err != nil {
		return analysis.Result{}, false, apperrors.Wrap(err, "load analysis")
	}
	if err := json.Unmarshal([]byte(cues), &r.Cues); err != nil {
		return analysis.Result{}, false, apperrors.Wrap(err, "decode analysis cues")
	}
	return r, true, nil
}

// SaveResult stores r under key until expires, replacing any earlier entry.
// Entries that expired before the save are dropped in the same transaction.
func (s *Store) SaveResult(ctx context.Context, key string, r analysis.Result, expires time.Time) error {
	cues, err := json.Marshal(r.Cues)
	if err != nil {
		return apperrors.Wrap(err, "encode analysis cues")
	}
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "begin analysis save")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM analyses WHERE expires_at <= ?`, toMillis(now)); err != nil {
		return apperrors.Wrap(err, "purge analyses")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analyses (cache_key, request_id, reference, raw, cues, attempts, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   request_id = excluded.request_id,
		   reference = excluded.reference,
		   raw = excluded.raw,
		   cues = excluded.cues,
		   attempts = excluded.attempts,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		key, r.RequestID, r.Reference, r.Raw, string(cues), r.Attempts, toMillis(now), toMillis(expires),
	); err != nil {
		return apperrors.Wrapf(err, "save analysis %s", r.RequestID)
	}
	return apperrors.Wrap(tx.Commit(), "commit analysis save")
}

// DeleteResult removes the analysis stored under key. A missing key is not
// an error.
func (s *Store) DeleteResult(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE cache_key = ?`, key)
	return apperrors.Wrap(err, "delete analysis")
}
