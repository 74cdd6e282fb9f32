package finder

import (
	"context"
	"fmt"
	"sort"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/models"
)

// suggestPoolLimit caps how many ungrouped candidates are considered.
const suggestPoolLimit = 20

// SuggestOptions controls a single suggestGroups call.
type SuggestOptions struct {
	MinGroupSize int
	MaxGroupSize int
}

// DefaultSuggestOptions returns the documented option defaults.
func DefaultSuggestOptions() SuggestOptions {
	return SuggestOptions{MinGroupSize: 3, MaxGroupSize: 6}
}

// Validate rejects out-of-range size bounds.
func (o SuggestOptions) Validate() error {
	if o.MinGroupSize < 2 {
		return commonerrors.NewInvalidOptionError(fmt.Sprintf("minGroupSize must be at least 2, got %d", o.MinGroupSize))
	}
	if o.MaxGroupSize < o.MinGroupSize {
		return commonerrors.NewInvalidOptionError(fmt.Sprintf("maxGroupSize %d is below minGroupSize %d", o.MaxGroupSize, o.MinGroupSize))
	}
	return nil
}

// SuggestGroups proposes study groups around each of the requester's
// subjects from the pool of complete, ungrouped users. Groups are built
// greedily: seeded with the first retrieved candidate, then repeatedly
// extended with the candidate scoring highest against the selected set.
// The result is locally good, not globally optimal.
func (f *Finder) SuggestGroups(ctx context.Context, userID string, opts SuggestOptions) ([]models.GroupSuggestion, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	user, err := f.loadCompleteUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool, err := f.users.FindUngroupedUsers(ctx, UserFilter{
		ExcludeUserID: user.ID,
		Subjects:      user.Subjects,
	}, suggestPoolLimit)
	if err != nil {
		return nil, err
	}

	suggestions := []models.GroupSuggestion{}
	for _, subject := range user.Subjects {
		bucket := bySubject(pool, subject)
		if len(bucket) < opts.MinGroupSize {
			continue
		}
		selected := f.greedySelect(bucket, opts.MaxGroupSize)

		members := make([]models.SuggestedMember, 0, len(selected))
		for i := range selected {
			members = append(members, models.SuggestedMember{
				UserID:             selected[i].ID,
				Name:               selected[i].Name,
				CompatibilityScore: f.scorer.ScoreUsers(user, &selected[i]).CompatibilityScore,
			})
		}

		estimated := f.meanPairwiseScore(selected)
		suggestions = append(suggestions, models.GroupSuggestion{
			Subject:                subject,
			SuggestedName:          fmt.Sprintf("%s Study Group", subject),
			SuggestedMembers:       members,
			EstimatedCompatibility: estimated,
			Reason:                 fmt.Sprintf("%d students studying %s with compatible profiles", len(members), subject),
			CreatedForUserID:       userID,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].EstimatedCompatibility > suggestions[j].EstimatedCompatibility
	})
	return suggestions, nil
}

// greedySelect seeds with the first candidate and repeatedly adds the
// remaining candidate with the highest mean score against the selection.
func (f *Finder) greedySelect(bucket []models.UserProfile, maxSize int) []models.UserProfile {
	selected := []models.UserProfile{bucket[0]}
	remaining := append([]models.UserProfile{}, bucket[1:]...)

	for len(selected) < maxSize && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i := range remaining {
			score := f.meanScoreAgainst(&remaining[i], selected)
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func (f *Finder) meanScoreAgainst(candidate *models.UserProfile, selected []models.UserProfile) float64 {
	total := 0
	for i := range selected {
		total += f.scorer.ScoreUsers(candidate, &selected[i]).CompatibilityScore
	}
	return float64(total) / float64(len(selected))
}

// meanPairwiseScore averages the user-user score across every unordered
// pair of the selection.
func (f *Finder) meanPairwiseScore(selected []models.UserProfile) int {
	total := 0
	pairs := 0
	for i := range selected {
		for j := i + 1; j < len(selected); j++ {
			total += f.scorer.ScoreUsers(&selected[i], &selected[j]).CompatibilityScore
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / pairs
}

func bySubject(pool []models.UserProfile, subject string) []models.UserProfile {
	bucket := []models.UserProfile{}
	for _, u := range pool {
		for _, s := range u.Subjects {
			if s == subject {
				bucket = append(bucket, u)
				break
			}
		}
	}
	return bucket
}
