package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/models"
)

// FindCandidateGroups retrieves active groups with open capacity focused
// on one of the filter subjects, excluding groups the user already
// belongs to. Current member profiles are loaded for member-compatibility
// averaging.
func (s *Store) FindCandidateGroups(ctx context.Context, filter finder.GroupFilter, limit int) ([]models.GroupProfile, error) {
	query := `SELECT g.id, g.name, g.subject, COALESCE(g.description, ''),
			g.experience_level, g.study_style, g.study_goals, g.schedule,
			g.max_members, g.status,
			(SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count
		FROM study_groups g
		WHERE g.status = 'active'
		AND g.subject = ANY($1)
		AND NOT EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $2)
		AND (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) < g.max_members
		ORDER BY g.created_at DESC LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(filter.Subjects), filter.ExcludeMemberID, limit)
	if err != nil {
		return nil, commonerrors.NewStorageFailureError("find candidate groups", err)
	}
	defer rows.Close()

	groups := []models.GroupProfile{}
	for rows.Next() {
		var (
			group        models.GroupProfile
			goals        []string
			scheduleJSON []byte
		)
		err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Subject,
			&group.Description,
			&group.ExperienceLevel,
			&group.StudyStyle,
			pq.Array(&goals),
			&scheduleJSON,
			&group.MaxMembers,
			&group.Status,
			&group.MemberCount,
		)
		if err != nil {
			return nil, commonerrors.NewStorageFailureError("scan candidate group", err)
		}
		for _, g := range goals {
			group.StudyGoals = append(group.StudyGoals, models.StudyGoal(g))
		}
		if len(scheduleJSON) > 0 {
			var schedule models.GroupSchedule
			if err := json.Unmarshal(scheduleJSON, &schedule); err != nil {
				return nil, commonerrors.NewStorageFailureError("decode group schedule", fmt.Errorf("group %s: %w", group.ID, err))
			}
			group.Schedule = &schedule
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewStorageFailureError("find candidate groups", err)
	}

	if err := s.loadGroupMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// loadGroupMembers attaches member user profiles to each group in one
// batched query.
func (s *Store) loadGroupMembers(ctx context.Context, groups []models.GroupProfile) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, len(groups))
	byID := make(map[string]*models.GroupProfile, len(groups))
	for i := range groups {
		ids[i] = groups[i].ID
		byID[groups[i].ID] = &groups[i]
	}

	query := `SELECT gm.group_id, ` + prefixedUserColumns("u") + `
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return commonerrors.NewStorageFailureError("load group members", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID string
		member, err := scanMember(rows, &groupID)
		if err != nil {
			return commonerrors.NewStorageFailureError("scan group member", err)
		}
		if group, ok := byID[groupID]; ok {
			group.Members = append(group.Members, *member)
		}
	}
	if err := rows.Err(); err != nil {
		return commonerrors.NewStorageFailureError("load group members", err)
	}
	return nil
}

func prefixedUserColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.name, COALESCE(%[1]s.university, ''), %[1]s.is_active, %[1]s.profile_completed,
		%[1]s.subjects, %[1]s.study_goals, %[1]s.experience_level, %[1]s.study_style, %[1]s.preferred_group_size, %[1]s.availability`, alias)
}

func scanMember(row rowScanner, groupID *string) (*models.UserProfile, error) {
	var (
		user             models.UserProfile
		goals            []string
		availabilityJSON []byte
	)
	err := row.Scan(
		groupID,
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
	for _, g := range goals {
		user.StudyGoals = append(user.StudyGoals, models.StudyGoal(g))
	}
	if len(availabilityJSON) > 0 {
		if err := json.Unmarshal(availabilityJSON, &user.Availability); err != nil {
			return nil, err
		}
	}
	return &user, nil
}
