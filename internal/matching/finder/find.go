package finder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/metrics"
	"studymatch-workers/internal/models"
)

// FindOptions controls a single findMatches call.
type FindOptions struct {
	IncludeUsers  bool
	IncludeGroups bool
	MaxResults    int
	MinScore      int
	Refresh       bool
}

// DefaultFindOptions returns the documented option defaults.
func DefaultFindOptions() FindOptions {
	return FindOptions{
		IncludeUsers:  true,
		IncludeGroups: true,
		MaxResults:    20,
		MinScore:      60,
	}
}

// Validate rejects out-of-range options.
func (o FindOptions) Validate() error {
	if o.MaxResults <= 0 {
		return commonerrors.NewInvalidOptionError(fmt.Sprintf("maxResults must be positive, got %d", o.MaxResults))
	}
	if o.MinScore < 0 || o.MinScore > 100 {
		return commonerrors.NewInvalidOptionError(fmt.Sprintf("minScore must be in [0,100], got %d", o.MinScore))
	}
	if !o.IncludeUsers && !o.IncludeGroups {
		return commonerrors.NewInvalidOptionError("at least one of includeUsers and includeGroups must be set")
	}
	return nil
}

// FindResult is the outcome of a findMatches call.
type FindResult struct {
	Matches          []models.MatchCandidate
	FromCache        bool
	GeneratedAt      time.Time
	ProcessingTimeMs int64
	TotalCandidates  int
}

// FindMatches loads the requesting user, serves a fresh cached snapshot
// when one exists, and otherwise retrieves, scores, ranks, and persists a
// new snapshot of match candidates.
func (f *Finder) FindMatches(ctx context.Context, userID string, opts FindOptions) (*FindResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	started := f.now()

	user, err := f.loadCompleteUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !opts.Refresh {
		if cached := f.cachedResult(ctx, userID); cached != nil {
			return cached, nil
		}
	}
	metrics.MatchCacheHits.WithLabelValues("miss").Inc()

	userQuota, groupQuota := splitQuota(opts)

	var userMatches, groupMatches []models.MatchCandidate
	totalScored := 0

	if opts.IncludeUsers {
		userMatches, err = f.scoreUserPool(ctx, user, opts)
		if err != nil {
			return nil, err
		}
		totalScored += len(userMatches)
		userMatches = filterByScore(userMatches, opts.MinScore)
	}
	if opts.IncludeGroups {
		groupMatches, err = f.scoreGroupPool(ctx, user, opts)
		if err != nil {
			return nil, err
		}
		totalScored += len(groupMatches)
		groupMatches = filterByScore(groupMatches, opts.MinScore)
	}

	merged := mergeRanked(userMatches, groupMatches, userQuota, groupQuota, opts.MaxResults)

	generatedAt := f.now()
	snapshot := &models.MatchSnapshot{
		ID:              uuid.NewString(),
		UserID:          userID,
		Candidates:      merged,
		TotalCandidates: totalScored,
		SearchCriteria: models.SearchCriteria{
			IncludeUsers:  opts.IncludeUsers,
			IncludeGroups: opts.IncludeGroups,
			MaxResults:    opts.MaxResults,
			MinScore:      opts.MinScore,
		},
		AlgorithmVersion: f.config.AlgorithmVersion,
		ProcessingTimeMs: generatedAt.Sub(started).Milliseconds(),
		Status:           models.SnapshotActive,
		CreatedAt:        generatedAt,
		ExpiresAt:        generatedAt.Add(f.config.SnapshotTTL),
	}
	for i := range snapshot.Candidates {
		snapshot.Candidates[i].ID = uuid.NewString()
	}

	if err := f.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	f.log.Info("match snapshot generated", map[string]interface{}{
		"userId":          userID,
		"matches":         len(snapshot.Candidates),
		"totalCandidates": totalScored,
		"processingMs":    snapshot.ProcessingTimeMs,
	})

	return &FindResult{
		Matches:          snapshot.Candidates,
		FromCache:        false,
		GeneratedAt:      generatedAt,
		ProcessingTimeMs: snapshot.ProcessingTimeMs,
		TotalCandidates:  totalScored,
	}, nil
}

// cachedResult returns a result built from a fresh active snapshot, or nil
// on a miss. Cache read failures degrade to a miss.
func (f *Finder) cachedResult(ctx context.Context, userID string) *FindResult {
	snapshot, err := f.snapshots.GetRecentActiveSnapshot(ctx, userID, f.config.CacheWindow)
	if err != nil {
		f.log.Warn("snapshot cache read failed, regenerating", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil
	}
	if snapshot == nil {
		return nil
	}

	visible := make([]models.MatchCandidate, 0, len(snapshot.Candidates))
	for _, c := range snapshot.Candidates {
		if !c.Dismissed {
			visible = append(visible, c)
		}
	}

	metrics.MatchCacheHits.WithLabelValues("hit").Inc()
	return &FindResult{
		Matches:          visible,
		FromCache:        true,
		GeneratedAt:      snapshot.CreatedAt,
		ProcessingTimeMs: snapshot.ProcessingTimeMs,
		TotalCandidates:  snapshot.TotalCandidates,
	}
}

func (f *Finder) scoreUserPool(ctx context.Context, user *models.UserProfile, opts FindOptions) ([]models.MatchCandidate, error) {
	filter := UserFilter{
		ExcludeUserID: user.ID,
		Subjects:      user.Subjects,
		University:    user.University,
	}
	pool, err := f.users.FindCandidateUsers(ctx, filter, opts.MaxResults*3)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.MatchCandidate, 0, len(pool))
	for i := range pool {
		other := &pool[i]
		result := f.scorer.ScoreUsers(user, other)
		metrics.MatchCandidatesScored.WithLabelValues("user").Inc()
		metrics.MatchCompatibilityScore.Observe(float64(result.CompatibilityScore))
		candidates = append(candidates, models.MatchCandidate{
			TargetType:         models.TargetUser,
			TargetID:           other.ID,
			TargetName:         other.Name,
			CompatibilityScore: result.CompatibilityScore,
			MatchFactors:       result.Factors,
			Reasons:            result.Reasons,
		})
	}
	return candidates, nil
}

func (f *Finder) scoreGroupPool(ctx context.Context, user *models.UserProfile, opts FindOptions) ([]models.MatchCandidate, error) {
	filter := GroupFilter{
		Subjects:        user.Subjects,
		ExcludeMemberID: user.ID,
	}
	pool, err := f.groups.FindCandidateGroups(ctx, filter, opts.MaxResults*2)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.MatchCandidate, 0, len(pool))
	for i := range pool {
		group := &pool[i]
		result := f.scorer.ScoreGroup(user, group)
		metrics.MatchCandidatesScored.WithLabelValues("group").Inc()
		metrics.MatchCompatibilityScore.Observe(float64(result.CompatibilityScore))
		candidates = append(candidates, models.MatchCandidate{
			TargetType:         models.TargetGroup,
			TargetID:           group.ID,
			TargetName:         group.Name,
			CompatibilityScore: result.CompatibilityScore,
			MatchFactors:       result.Factors,
			Reasons:            result.Reasons,
			MemberCount:        group.MemberCount,
			MaxMembers:         group.MaxMembers,
		})
	}
	return candidates, nil
}

// splitQuota allocates 60% of maxResults to user matches and the rest to
// group matches when both pools are requested. A single requested pool
// takes the full budget.
func splitQuota(opts FindOptions) (userQuota, groupQuota int) {
	switch {
	case opts.IncludeUsers && opts.IncludeGroups:
		userQuota = opts.MaxResults * 6 / 10
		groupQuota = opts.MaxResults - userQuota
	case opts.IncludeUsers:
		userQuota = opts.MaxResults
	default:
		groupQuota = opts.MaxResults
	}
	return userQuota, groupQuota
}

func filterByScore(candidates []models.MatchCandidate, minScore int) []models.MatchCandidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.CompatibilityScore >= minScore {
			kept = append(kept, c)
		}
	}
	return kept
}

// mergeRanked sorts each pool by score descending (ties keep retrieval
// order), trims each to its quota, then merges, re-sorts, and truncates to
// the overall result budget.
func mergeRanked(users, groups []models.MatchCandidate, userQuota, groupQuota, maxResults int) []models.MatchCandidate {
	sortByScore(users)
	sortByScore(groups)
	if len(users) > userQuota {
		users = users[:userQuota]
	}
	if len(groups) > groupQuota {
		groups = groups[:groupQuota]
	}

	merged := make([]models.MatchCandidate, 0, len(users)+len(groups))
	merged = append(merged, users...)
	merged = append(merged, groups...)
	sortByScore(merged)
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

func sortByScore(candidates []models.MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CompatibilityScore > candidates[j].CompatibilityScore
	})
}
