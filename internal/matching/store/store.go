// Package store is the Postgres and Redis backed implementation of the
// finder's collaborator interfaces: candidate retrieval, snapshot
// persistence with a 24h read cache, interaction updates, and the
// expired-snapshot sweep.
package store

import (
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"

	"studymatch-workers/internal/common/logger"
)

const (
	snapshotKeyPrefix = "match:snapshot:"
	profileKeyPrefix  = "match:profile:"
)

// Config tunes the store's cache TTLs.
type Config struct {
	SnapshotCacheTTL time.Duration
	ProfileCacheTTL  time.Duration
}

// DefaultConfig returns the production cache settings.
func DefaultConfig() Config {
	return Config{
		SnapshotCacheTTL: 24 * time.Hour,
		ProfileCacheTTL:  15 * time.Minute,
	}
}

// Store provides matching data access over Postgres with a Redis cache.
type Store struct {
	db     *sql.DB
	cache  *redis.Client
	config Config
	log    logger.Logger
	now    func() time.Time
}

// New builds a Store. cache may be nil, in which case all reads go
// straight to Postgres.
func New(db *sql.DB, cache *redis.Client, cfg Config, log logger.Logger) *Store {
	if cfg.SnapshotCacheTTL <= 0 {
		cfg.SnapshotCacheTTL = DefaultConfig().SnapshotCacheTTL
	}
	if cfg.ProfileCacheTTL <= 0 {
		cfg.ProfileCacheTTL = DefaultConfig().ProfileCacheTTL
	}
	return &Store{
		db:     db,
		cache:  cache,
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

func snapshotKey(userID string) string { return snapshotKeyPrefix + userID }
func profileKey(userID string) string  { return profileKeyPrefix + userID }
