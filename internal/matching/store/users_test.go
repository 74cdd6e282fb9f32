package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/models"
)

var userRowColumns = []string{
	"id", "name", "university", "is_active", "profile_completed",
	"subjects", "study_goals", "experience_level", "study_style",
	"preferred_group_size", "availability",
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil, DefaultConfig(), logger.NewTestLogger(t)), mock
}

func newTestStoreWithRedis(t *testing.T) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	return New(db, cache, DefaultConfig(), logger.NewTestLogger(t)), mock, mr
}

func sampleUserRow() []driverValue {
	return []driverValue{
		"user-1", "Aisha", "MIT", true, true,
		"{Math,CS}", "{exam-prep}", "intermediate", "discussion",
		"medium", []byte(`{"monday":{"morning":true}}`),
	}
}

type driverValue = driver.Value

func TestGetUser(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(sampleUserRow()...))

	user, err := s.GetUser(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Aisha", user.Name)
	assert.Equal(t, []string{"Math", "CS"}, user.Subjects)
	assert.Equal(t, []models.StudyGoal{models.GoalExamPrep}, user.StudyGoals)
	assert.Equal(t, models.ExperienceIntermediate, user.ExperienceLevel)
	assert.True(t, user.Availability.At(models.Monday, models.SlotMorning))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_Absent(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	user, err := s.GetUser(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestGetUser_ProfileCache(t *testing.T) {
	s, mock, mr := newTestStoreWithRedis(t)

	cached := models.UserProfile{ID: "user-1", Name: "Aisha", Subjects: []string{"Math"}}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	mr.Set(profileKey("user-1"), string(raw))

	// No SQL expectations: the cached profile must satisfy the read.
	user, err := s.GetUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "Aisha", user.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_WritesThroughCache(t *testing.T) {
	s, mock, mr := newTestStoreWithRedis(t)

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(sampleUserRow()...))

	_, err := s.GetUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, mr.Exists(profileKey("user-1")))
}

func TestFindCandidateUsers(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(sampleUserRow()...).
		AddRow("user-2", "Ben", "", true, true, "{Math}", "{}", "beginner", "quiet", "small", nil)

	mock.ExpectQuery("FROM users").
		WithArgs("req-1", pq.Array([]string{"Math"}), 60).
		WillReturnRows(rows)

	users, err := s.FindCandidateUsers(context.Background(), finder.UserFilter{
		ExcludeUserID: "req-1",
		Subjects:      []string{"Math"},
	}, 60)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user-2", users[1].ID)
	assert.Empty(t, users[1].Availability)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidateUsers_UniversityFilter(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("AND university = \\$3").
		WithArgs("req-1", pq.Array([]string{"Math"}), "MIT", 60).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := s.FindCandidateUsers(context.Background(), finder.UserFilter{
		ExcludeUserID: "req-1",
		Subjects:      []string{"Math"},
		University:    "MIT",
	}, 60)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUngroupedUsers(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("NOT EXISTS \\(SELECT 1 FROM group_members").
		WithArgs("req-1", pq.Array([]string{"Math"}), 20).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(sampleUserRow()...))

	users, err := s.FindUngroupedUsers(context.Background(), finder.UserFilter{
		ExcludeUserID: "req-1",
		Subjects:      []string{"Math"},
	}, 20)

	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidateGroups(t *testing.T) {
	s, mock := newTestStore(t)

	groupRows := sqlmock.NewRows([]string{
		"id", "name", "subject", "description", "experience_level", "study_style",
		"study_goals", "schedule", "max_members", "status", "member_count",
	}).AddRow("group-1", "Math Circle", "Math", "", "intermediate", "discussion",
		"{exam-prep}", []byte(`{"day":"monday","slot":"morning"}`), 5, "active", 2)

	mock.ExpectQuery("FROM study_groups g").
		WithArgs(pq.Array([]string{"Math"}), "req-1", 40).
		WillReturnRows(groupRows)

	memberRows := sqlmock.NewRows(append([]string{"group_id"}, userRowColumns...)).
		AddRow(append([]driverValue{"group-1"}, sampleUserRow()...)...)

	mock.ExpectQuery("FROM group_members gm").
		WithArgs(pq.Array([]string{"group-1"})).
		WillReturnRows(memberRows)

	groups, err := s.FindCandidateGroups(context.Background(), finder.GroupFilter{
		Subjects:        []string{"Math"},
		ExcludeMemberID: "req-1",
	}, 40)

	require.NoError(t, err)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "Math Circle", g.Name)
	assert.Equal(t, 2, g.MemberCount)
	require.NotNil(t, g.Schedule)
	assert.Equal(t, models.Monday, g.Schedule.Day)
	require.Len(t, g.Members, 1)
	assert.Equal(t, "user-1", g.Members[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidateGroups_NoSchedule(t *testing.T) {
	s, mock := newTestStore(t)

	groupRows := sqlmock.NewRows([]string{
		"id", "name", "subject", "description", "experience_level", "study_style",
		"study_goals", "schedule", "max_members", "status", "member_count",
	}).AddRow("group-1", "CS Crew", "CS", "", "mixed", "mixed", "{}", nil, 6, "active", 0)

	mock.ExpectQuery("FROM study_groups g").
		WithArgs(pq.Array([]string{"CS"}), "req-1", 40).
		WillReturnRows(groupRows)

	mock.ExpectQuery("FROM group_members gm").
		WithArgs(pq.Array([]string{"group-1"})).
		WillReturnRows(sqlmock.NewRows(append([]string{"group_id"}, userRowColumns...)))

	groups, err := s.FindCandidateGroups(context.Background(), finder.GroupFilter{
		Subjects:        []string{"CS"},
		ExcludeMemberID: "req-1",
	}, 40)

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Nil(t, groups[0].Schedule)
}

func TestGetUser_CacheReadFailureFallsThroughToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache, cacheMock := redismock.NewClientMock()
	s := New(db, cache, DefaultConfig(), logger.NewTestLogger(t))

	cacheMock.ExpectGet(profileKey("user-1")).SetErr(errors.New("connection reset"))

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(sampleUserRow()...))

	user, err := s.GetUser(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Aisha", user.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
