package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/models"
)

const userColumns = `id, name, COALESCE(university, ''), is_active, profile_completed,
	subjects, study_goals, experience_level, study_style, preferred_group_size, availability`

// GetUser loads one user profile, preferring the short-lived Redis profile
// cache. Returns nil without error when the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	if cached := s.cachedProfile(ctx, id); cached != nil {
		return cached, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, commonerrors.NewStorageFailureError("get user", err)
	}

	s.cacheProfile(ctx, user)
	return user, nil
}

// FindCandidateUsers retrieves active, complete users sharing at least one
// subject with the requester, excluding the requester. A university on the
// filter is a hard constraint.
func (s *Store) FindCandidateUsers(ctx context.Context, filter finder.UserFilter, limit int) ([]models.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE id <> $1 AND is_active = TRUE AND profile_completed = TRUE AND subjects && $2`
	args := []interface{}{filter.ExcludeUserID, pq.Array(filter.Subjects)}

	if filter.University != "" {
		args = append(args, filter.University)
		query += fmt.Sprintf(" AND university = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	users, err := s.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, commonerrors.NewStorageFailureError("find candidate users", err)
	}
	return users, nil
}

// FindUngroupedUsers retrieves candidate users who belong to no study
// group, for the group-formation heuristic.
func (s *Store) FindUngroupedUsers(ctx context.Context, filter finder.UserFilter, limit int) ([]models.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE id <> $1 AND is_active = TRUE AND profile_completed = TRUE AND subjects && $2
		AND NOT EXISTS (SELECT 1 FROM group_members gm WHERE gm.user_id = users.id)
		ORDER BY created_at DESC LIMIT $3`

	users, err := s.queryUsers(ctx, query, filter.ExcludeUserID, pq.Array(filter.Subjects), limit)
	if err != nil {
		return nil, commonerrors.NewStorageFailureError("find ungrouped users", err)
	}
	return users, nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.UserProfile{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.UserProfile, error) {
	var (
		user             models.UserProfile
		goals            []string
		availabilityJSON []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.University,
		&user.IsActive,
		&user.ProfileCompleted,
		pq.Array(&user.Subjects),
		pq.Array(&goals),
		&user.ExperienceLevel,
		&user.StudyStyle,
		&user.PreferredGroupSize,
		&availabilityJSON,
	)
	if err != nil {
		return nil, err
	}

	user.StudyGoals = make([]models.StudyGoal, 0, len(goals))
	for _, g := range goals {
		user.StudyGoals = append(user.StudyGoals, models.StudyGoal(g))
	}
	if len(availabilityJSON) > 0 {
		if err := json.Unmarshal(availabilityJSON, &user.Availability); err != nil {
			return nil, fmt.Errorf("decode availability: %w", err)
		}
	}
	return &user, nil
}

func (s *Store) cachedProfile(ctx context.Context, id string) *models.UserProfile {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, profileKey(id)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		s.log.Warn("profile cache read failed", map[string]interface{}{"userId": id, "error": err.Error()})
		return nil
	}
	var user models.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	return &user
}

func (s *Store) cacheProfile(ctx context.Context, user *models.UserProfile) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, profileKey(user.ID), raw, s.config.ProfileCacheTTL).Err(); err != nil {
		s.log.Warn("profile cache write failed", map[string]interface{}{"userId": user.ID, "error": err.Error()})
	}
}
