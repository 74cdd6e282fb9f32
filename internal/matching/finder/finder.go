package finder

import (
	"context"
	"time"

	commonerrors "studymatch-workers/internal/common/errors"
	"studymatch-workers/internal/common/logger"
	"studymatch-workers/internal/matching/scorer"
	"studymatch-workers/internal/models"
)

// UserFilter narrows candidate user retrieval.
type UserFilter struct {
	ExcludeUserID string
	Subjects      []string
	// University is a hard filter when non-empty.
	University string
}

// GroupFilter narrows candidate group retrieval.
type GroupFilter struct {
	// Subjects restricts groups to those focused on one of these.
	Subjects []string
	// ExcludeMemberID drops groups this user already belongs to.
	ExcludeMemberID string
}

// UserSource retrieves user profiles for matching.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*models.UserProfile, error)
	FindCandidateUsers(ctx context.Context, filter UserFilter, limit int) ([]models.UserProfile, error)
	FindUngroupedUsers(ctx context.Context, filter UserFilter, limit int) ([]models.UserProfile, error)
}

// GroupSource retrieves study group profiles for matching.
type GroupSource interface {
	FindCandidateGroups(ctx context.Context, filter GroupFilter, limit int) ([]models.GroupProfile, error)
}

// SnapshotStore persists and retrieves match snapshots.
type SnapshotStore interface {
	GetRecentActiveSnapshot(ctx context.Context, userID string, within time.Duration) (*models.MatchSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.MatchSnapshot) error
	MarkInteraction(ctx context.Context, snapshotID, candidateID string, action models.InteractionAction, dismissReason string) error
	DeleteExpiredSnapshots(ctx context.Context) (int64, error)
}

// Config tunes the Finder's caching and snapshot behavior.
type Config struct {
	AlgorithmVersion string
	// CacheWindow is how long a snapshot counts as fresh for reads.
	CacheWindow time.Duration
	// SnapshotTTL is how long a snapshot lives before the sweeper may
	// delete it.
	SnapshotTTL time.Duration
}

// DefaultConfig returns the production cache and retention settings.
func DefaultConfig() Config {
	return Config{
		AlgorithmVersion: "2.0",
		CacheWindow:      24 * time.Hour,
		SnapshotTTL:      7 * 24 * time.Hour,
	}
}

// Finder orchestrates candidate retrieval, scoring, ranking, and snapshot
// persistence. It holds no mutable state and is safe for concurrent use.
type Finder struct {
	users     UserSource
	groups    GroupSource
	snapshots SnapshotStore
	scorer    *scorer.Scorer
	config    Config
	log       logger.Logger
	now       func() time.Time
}

// New builds a Finder over the given collaborators.
func New(users UserSource, groups GroupSource, snapshots SnapshotStore, sc *scorer.Scorer, cfg Config, log logger.Logger) *Finder {
	if cfg.AlgorithmVersion == "" {
		cfg.AlgorithmVersion = DefaultConfig().AlgorithmVersion
	}
	if cfg.CacheWindow <= 0 {
		cfg.CacheWindow = DefaultConfig().CacheWindow
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = DefaultConfig().SnapshotTTL
	}
	return &Finder{
		users:     users,
		groups:    groups,
		snapshots: snapshots,
		scorer:    sc,
		config:    cfg,
		log:       log,
		now:       time.Now,
	}
}

// loadCompleteUser fetches the requesting user and enforces the
// completeness invariant shared by all matching operations.
func (f *Finder) loadCompleteUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := f.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, commonerrors.NewUserNotFoundError(userID)
	}
	if !user.ProfileCompleted || !user.IsComplete() {
		return nil, commonerrors.NewProfileIncompleteError(userID)
	}
	return user, nil
}

// MarkInteraction records a user action against one candidate of a
// snapshot. The update is keyed to a single candidate row so concurrent
// double-taps cannot lose writes.
func (f *Finder) MarkInteraction(ctx context.Context, snapshotID, candidateID string, action models.InteractionAction, dismissReason string) error {
	if !action.IsValid() {
		return commonerrors.NewInvalidInteractionError(string(action))
	}
	return f.snapshots.MarkInteraction(ctx, snapshotID, candidateID, action, dismissReason)
}

// SweepExpired deletes snapshots past their expiry, returning the count.
// Safe to run concurrently with reads since it only removes expired rows.
func (f *Finder) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := f.snapshots.DeleteExpiredSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		f.log.Info("expired snapshots swept", map[string]interface{}{"deleted": deleted})
	}
	return deleted, nil
}
