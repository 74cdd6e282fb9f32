package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/models"
)

func sampleSnapshot(createdAt time.Time) *models.MatchSnapshot {
	return &models.MatchSnapshot{
		ID:     "snap-1",
		UserID: "user-1",
		Candidates: []models.MatchCandidate{
			{
				ID:                 "cand-1",
				TargetType:         models.TargetUser,
				TargetID:           "user-2",
				TargetName:         "Ben",
				CompatibilityScore: 95,
				Reasons:            []string{"You share an interest in Math"},
			},
		},
		TotalCandidates:  3,
		SearchCriteria:   models.SearchCriteria{IncludeUsers: true, IncludeGroups: true, MaxResults: 20, MinScore: 60},
		AlgorithmVersion: "2.0",
		ProcessingTimeMs: 12,
		Status:           models.SnapshotActive,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(7 * 24 * time.Hour),
	}
}

func TestSaveSnapshot(t *testing.T) {
	s, mock := newTestStore(t)
	snapshot := sampleSnapshot(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO match_snapshots").
		WithArgs(snapshot.ID, snapshot.UserID, sqlmock.AnyArg(), "2.0",
			int64(12), 3, string(models.SnapshotActive), snapshot.CreatedAt, snapshot.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO match_candidates").
		WithArgs("cand-1", snapshot.ID, 0, string(models.TargetUser), "user-2", "Ben",
			0, 0, 95, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveSnapshot(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshot_WritesCache(t *testing.T) {
	s, mock, mr := newTestStoreWithRedis(t)
	snapshot := sampleSnapshot(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO match_snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO match_candidates").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveSnapshot(context.Background(), snapshot))

	require.True(t, mr.Exists(snapshotKey("user-1")))
	ttl := mr.TTL(snapshotKey("user-1"))
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestSaveSnapshot_RollsBackOnCandidateFailure(t *testing.T) {
	s, mock := newTestStore(t)
	snapshot := sampleSnapshot(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO match_snapshots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO match_candidates").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.SaveSnapshot(context.Background(), snapshot)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeStorageFailure, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var snapshotRowColumns = []string{
	"id", "user_id", "search_criteria", "algorithm_version",
	"processing_time_ms", "total_candidates", "status", "created_at", "expires_at",
}

var candidateRowColumns = []string{
	"id", "target_type", "target_id", "target_name", "member_count", "max_members",
	"score", "factors", "reasons", "viewed", "viewed_at", "interested",
	"contacted", "contacted_at", "joined", "joined_at", "dismissed", "dismissed_at", "dismiss_reason",
}

func TestGetRecentActiveSnapshot(t *testing.T) {
	s, mock := newTestStore(t)
	createdAt := time.Now().Add(-time.Hour)
	expiresAt := createdAt.Add(7 * 24 * time.Hour)

	mock.ExpectQuery("FROM match_snapshots").
		WithArgs("user-1", string(models.SnapshotActive), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(snapshotRowColumns).AddRow(
			"snap-1", "user-1", []byte(`{"includeUsers":true,"includeGroups":true,"maxResults":20,"minScore":60}`),
			"2.0", int64(12), 3, "active", createdAt, expiresAt))

	mock.ExpectQuery("FROM match_candidates").
		WithArgs("snap-1").
		WillReturnRows(sqlmock.NewRows(candidateRowColumns).AddRow(
			"cand-1", "user", "user-2", "Ben", 0, 0, 95,
			[]byte(`{}`), []byte(`["You share an interest in Math"]`),
			false, nil, false, false, nil, false, nil, false, nil, ""))

	snapshot, err := s.GetRecentActiveSnapshot(context.Background(), "user-1", 24*time.Hour)

	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "snap-1", snapshot.ID)
	assert.Equal(t, 3, snapshot.TotalCandidates)
	require.Len(t, snapshot.Candidates, 1)
	assert.Equal(t, 95, snapshot.Candidates[0].CompatibilityScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentActiveSnapshot_Miss(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("FROM match_snapshots").
		WithArgs("user-1", string(models.SnapshotActive), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(snapshotRowColumns))

	snapshot, err := s.GetRecentActiveSnapshot(context.Background(), "user-1", 24*time.Hour)

	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestGetRecentActiveSnapshot_LazyExpiry(t *testing.T) {
	s, mock := newTestStore(t)
	createdAt := time.Now().Add(-8 * 24 * time.Hour)

	mock.ExpectQuery("FROM match_snapshots").
		WithArgs("user-1", string(models.SnapshotActive), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(snapshotRowColumns).AddRow(
			"snap-old", "user-1", []byte(`{}`), "2.0", int64(5), 1, "active",
			createdAt, createdAt.Add(7*24*time.Hour)))

	mock.ExpectExec("UPDATE match_snapshots SET status").
		WithArgs(string(models.SnapshotExpired), "snap-old").
		WillReturnResult(sqlmock.NewResult(0, 1))

	snapshot, err := s.GetRecentActiveSnapshot(context.Background(), "user-1", 24*365*time.Hour)

	require.NoError(t, err)
	assert.Nil(t, snapshot, "a snapshot past its expiry reads as a miss")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentActiveSnapshot_CacheHit(t *testing.T) {
	s, mock, mr := newTestStoreWithRedis(t)
	snapshot := sampleSnapshot(time.Now().Add(-time.Hour))

	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	mr.Set(snapshotKey("user-1"), string(raw))

	// No SQL expectations: the cache must satisfy the read.
	got, err := s.GetRecentActiveSnapshot(context.Background(), "user-1", 24*time.Hour)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "snap-1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentActiveSnapshot_StaleCacheFallsThrough(t *testing.T) {
	s, mock, mr := newTestStoreWithRedis(t)
	stale := sampleSnapshot(time.Now().Add(-36 * time.Hour))

	raw, err := json.Marshal(stale)
	require.NoError(t, err)
	mr.Set(snapshotKey("user-1"), string(raw))

	mock.ExpectQuery("FROM match_snapshots").
		WithArgs("user-1", string(models.SnapshotActive), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(snapshotRowColumns))

	got, err := s.GetRecentActiveSnapshot(context.Background(), "user-1", 24*time.Hour)

	require.NoError(t, err)
	assert.Nil(t, got, "a cached snapshot older than the window is a miss")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkInteraction(t *testing.T) {
	tests := []struct {
		name    string
		action  models.InteractionAction
		pattern string
		args    []driverValue
	}{
		{"viewed", models.ActionViewed, "SET viewed = TRUE, viewed_at", []driverValue{"cand-1", "snap-1"}},
		{"interested", models.ActionInterested, "SET interested = TRUE", []driverValue{"cand-1", "snap-1"}},
		{"contacted", models.ActionContacted, "SET contacted = TRUE, contacted_at", []driverValue{"cand-1", "snap-1"}},
		{"joined", models.ActionJoined, "SET joined = TRUE, joined_at", []driverValue{"cand-1", "snap-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestStore(t)

			mock.ExpectExec(tt.pattern).
				WithArgs(tt.args...).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := s.MarkInteraction(context.Background(), "snap-1", "cand-1", tt.action, "")
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMarkInteraction_CandidateNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("SET viewed = TRUE").
		WithArgs("cand-x", "snap-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkInteraction(context.Background(), "snap-1", "cand-x", models.ActionViewed, "")

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeCandidateNotFound, stdErr.Code)
}

func TestMarkInteraction_DismissInvalidatesCache(t *testing.T) {
	s, mock, mr := newTestStoreWithRedis(t)
	mr.Set(snapshotKey("user-1"), "cached")

	mock.ExpectExec("SET dismissed = TRUE, dismissed_at").
		WithArgs("cand-1", "snap-1", "not relevant").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT user_id FROM match_snapshots").
		WithArgs("snap-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))

	err := s.MarkInteraction(context.Background(), "snap-1", "cand-1", models.ActionDismissed, "not relevant")

	require.NoError(t, err)
	assert.False(t, mr.Exists(snapshotKey("user-1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredSnapshots(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM match_candidates").
		WithArgs(sqlmock.AnyArg(), string(models.SnapshotExpired)).
		WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectExec("DELETE FROM match_snapshots").
		WithArgs(sqlmock.AnyArg(), string(models.SnapshotExpired)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	deleted, err := s.DeleteExpiredSnapshots(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
