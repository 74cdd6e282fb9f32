package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/metrics"
	"studymatch-workers/internal/models"
)

// SaveSnapshot persists a snapshot and its candidate rows in one
// transaction, then writes the snapshot through to the Redis cache.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.MatchSnapshot) error {
	criteria, err := json.Marshal(snapshot.SearchCriteria)
	if err != nil {
		return commonerrors.NewStorageFailureError("encode search criteria", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return commonerrors.NewStorageFailureError("begin snapshot tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO match_snapshots
		(id, user_id, search_criteria, algorithm_version, processing_time_ms, total_candidates, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snapshot.ID, snapshot.UserID, criteria, snapshot.AlgorithmVersion,
		snapshot.ProcessingTimeMs, snapshot.TotalCandidates, snapshot.Status,
		snapshot.CreatedAt, snapshot.ExpiresAt)
	if err != nil {
		return commonerrors.NewStorageFailureError("insert snapshot", err)
	}

	for i, c := range snapshot.Candidates {
		factors, err := json.Marshal(c.MatchFactors)
		if err != nil {
			return commonerrors.NewStorageFailureError("encode match factors", err)
		}
		reasons, err := json.Marshal(c.Reasons)
		if err != nil {
			return commonerrors.NewStorageFailureError("encode reasons", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO match_candidates
			(id, snapshot_id, position, target_type, target_id, target_name, member_count, max_members, score, factors, reasons)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID, snapshot.ID, i, c.TargetType, c.TargetID, c.TargetName,
			c.MemberCount, c.MaxMembers, c.CompatibilityScore, factors, reasons)
		if err != nil {
			return commonerrors.NewStorageFailureError("insert candidate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return commonerrors.NewStorageFailureError("commit snapshot tx", err)
	}

	s.cacheSnapshot(ctx, snapshot)
	return nil
}

// GetRecentActiveSnapshot returns the newest active snapshot for the user
// created within the window, Redis first with a Postgres fallback, or nil
// on a miss. Snapshots found past their expiry are flipped to expired and
// treated as misses.
func (s *Store) GetRecentActiveSnapshot(ctx context.Context, userID string, within time.Duration) (*models.MatchSnapshot, error) {
	if snapshot := s.cachedSnapshot(ctx, userID, within); snapshot != nil {
		return snapshot, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, search_criteria, algorithm_version,
			processing_time_ms, total_candidates, status, created_at, expires_at
		FROM match_snapshots
		WHERE user_id = $1 AND status = $2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`,
		userID, models.SnapshotActive, s.now().Add(-within))

	var (
		snapshot     models.MatchSnapshot
		criteriaJSON []byte
	)
	err := row.Scan(&snapshot.ID, &snapshot.UserID, &criteriaJSON, &snapshot.AlgorithmVersion,
		&snapshot.ProcessingTimeMs, &snapshot.TotalCandidates, &snapshot.Status,
		&snapshot.CreatedAt, &snapshot.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, commonerrors.NewStorageFailureError("get snapshot", err)
	}
	if err := json.Unmarshal(criteriaJSON, &snapshot.SearchCriteria); err != nil {
		return nil, commonerrors.NewStorageFailureError("decode search criteria", err)
	}

	if snapshot.ExpiresAt.Before(s.now()) {
		s.expireSnapshot(ctx, snapshot.ID)
		return nil, nil
	}

	if err := s.loadCandidates(ctx, &snapshot); err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, &snapshot)
	return &snapshot, nil
}

func (s *Store) loadCandidates(ctx context.Context, snapshot *models.MatchSnapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, target_type, target_id, target_name,
			member_count, max_members, score, factors, reasons,
			viewed, viewed_at, interested, contacted, contacted_at,
			joined, joined_at, dismissed, dismissed_at, COALESCE(dismiss_reason, '')
		FROM match_candidates WHERE snapshot_id = $1 ORDER BY position`, snapshot.ID)
	if err != nil {
		return commonerrors.NewStorageFailureError("load candidates", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c           models.MatchCandidate
			factorsJSON []byte
			reasonsJSON []byte
		)
		err := rows.Scan(&c.ID, &c.TargetType, &c.TargetID, &c.TargetName,
			&c.MemberCount, &c.MaxMembers, &c.CompatibilityScore, &factorsJSON, &reasonsJSON,
			&c.Viewed, &c.ViewedAt, &c.Interested, &c.Contacted, &c.ContactedAt,
			&c.Joined, &c.JoinedAt, &c.Dismissed, &c.DismissedAt, &c.DismissReason)
		if err != nil {
			return commonerrors.NewStorageFailureError("scan candidate", err)
		}
		if err := json.Unmarshal(factorsJSON, &c.MatchFactors); err != nil {
			return commonerrors.NewStorageFailureError("decode match factors", err)
		}
		if err := json.Unmarshal(reasonsJSON, &c.Reasons); err != nil {
			return commonerrors.NewStorageFailureError("decode reasons", err)
		}
		snapshot.Candidates = append(snapshot.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return commonerrors.NewStorageFailureError("load candidates", err)
	}
	return nil
}

// MarkInteraction sets one interaction flag on a single candidate row.
// The update is a single keyed statement, so concurrent marks on the same
// candidate cannot lose writes.
func (s *Store) MarkInteraction(ctx context.Context, snapshotID, candidateID string, action models.InteractionAction, dismissReason string) error {
	var query string
	args := []interface{}{candidateID, snapshotID}

	switch action {
	case models.ActionViewed:
		query = `UPDATE match_candidates SET viewed = TRUE, viewed_at = NOW() WHERE id = $1 AND snapshot_id = $2`
	case models.ActionInterested:
		query = `UPDATE match_candidates SET interested = TRUE WHERE id = $1 AND snapshot_id = $2`
	case models.ActionContacted:
		query = `UPDATE match_candidates SET contacted = TRUE, contacted_at = NOW() WHERE id = $1 AND snapshot_id = $2`
	case models.ActionJoined:
		query = `UPDATE match_candidates SET joined = TRUE, joined_at = NOW() WHERE id = $1 AND snapshot_id = $2`
	case models.ActionDismissed:
		query = `UPDATE match_candidates SET dismissed = TRUE, dismissed_at = NOW(), dismiss_reason = $3 WHERE id = $1 AND snapshot_id = $2`
		args = append(args, dismissReason)
	default:
		return commonerrors.NewInvalidInteractionError(string(action))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return commonerrors.NewStorageFailureError("mark interaction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return commonerrors.NewStorageFailureError("mark interaction", err)
	}
	if affected == 0 {
		return commonerrors.NewCandidateNotFoundError(snapshotID, candidateID)
	}

	// A dismissed candidate must vanish from the cached list, so drop the
	// owner's cache entry and let the next read refilter from Postgres.
	if action == models.ActionDismissed {
		s.invalidateSnapshotCache(ctx, snapshotID)
	}
	return nil
}

// DeleteExpiredSnapshots hard-deletes snapshots past their expiry or
// already flipped to expired, with their candidate rows. Idempotent.
func (s *Store) DeleteExpiredSnapshots(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, commonerrors.NewStorageFailureError("begin sweep tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM match_candidates WHERE snapshot_id IN
		(SELECT id FROM match_snapshots WHERE expires_at < $1 OR status = $2)`,
		s.now(), models.SnapshotExpired)
	if err != nil {
		return 0, commonerrors.NewStorageFailureError("delete expired candidates", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM match_snapshots WHERE expires_at < $1 OR status = $2`,
		s.now(), models.SnapshotExpired)
	if err != nil {
		return 0, commonerrors.NewStorageFailureError("delete expired snapshots", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, commonerrors.NewStorageFailureError("delete expired snapshots", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, commonerrors.NewStorageFailureError("commit sweep tx", err)
	}

	metrics.SnapshotsSwept.Add(float64(deleted))
	return deleted, nil
}

func (s *Store) expireSnapshot(ctx context.Context, id string) {
	if _, err := s.db.ExecContext(ctx, `UPDATE match_snapshots SET status = $1 WHERE id = $2`,
		models.SnapshotExpired, id); err != nil {
		s.log.Warn("lazy snapshot expiry failed", map[string]interface{}{"snapshotId": id, "error": err.Error()})
	}
}

func (s *Store) cachedSnapshot(ctx context.Context, userID string, within time.Duration) *models.MatchSnapshot {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, snapshotKey(userID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		s.log.Warn("snapshot cache read failed", map[string]interface{}{"userId": userID, "error": err.Error()})
		return nil
	}

	var snapshot models.MatchSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil
	}
	now := s.now()
	if snapshot.Status != models.SnapshotActive ||
		snapshot.CreatedAt.Before(now.Add(-within)) ||
		snapshot.ExpiresAt.Before(now) {
		return nil
	}
	return &snapshot
}

func (s *Store) cacheSnapshot(ctx context.Context, snapshot *models.MatchSnapshot) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, snapshotKey(snapshot.UserID), raw, s.config.SnapshotCacheTTL).Err(); err != nil {
		s.log.Warn("snapshot cache write failed", map[string]interface{}{"userId": snapshot.UserID, "error": err.Error()})
	}
}

// invalidateSnapshotCache resolves the snapshot's owner and drops their
// cached entry. Best effort; a stale entry ages out with its TTL anyway.
func (s *Store) invalidateSnapshotCache(ctx context.Context, snapshotID string) {
	if s.cache == nil {
		return
	}
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM match_snapshots WHERE id = $1`, snapshotID).Scan(&userID)
	if err != nil {
		s.log.Warn("snapshot owner lookup failed", map[string]interface{}{"snapshotId": snapshotID, "error": err.Error()})
		return
	}
	if err := s.cache.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		s.log.Warn("snapshot cache invalidation failed", map[string]interface{}{"userId": userID, "error": err.Error()})
	}
}
