package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/repolens/apps/server/internal/repos"
)

const redisBuildPrefix = "build:"

// DefaultBuildTTL is how long a build record survives after its last write.
const DefaultBuildTTL = 24 * time.Hour

// Compile-time check: *RedisBuildStore implements repos.BuildStore.
var _ repos.BuildStore = (*RedisBuildStore)(nil)

// RedisBuildStore keeps build records as JSON strings with an expiry. Every
// Save refreshes the expiry.
type RedisBuildStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisBuildStore creates a RedisBuildStore. A ttl of zero uses
// DefaultBuildTTL.
func NewRedisBuildStore(rdb *redis.Client, ttl time.Duration) *RedisBuildStore {
	if ttl <= 0 {
		ttl = DefaultBuildTTL
	}
	return &RedisBuildStore{rdb: rdb, ttl: ttl}
}

// Save writes b, replacing any earlier record with the same ID.
func (s *RedisBuildStore) Save(ctx context.Context, b repos.Build) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal build: %w", err)
	}
	if err := s.rdb.Set(ctx, redisBuildPrefix+b.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save build %q: %w", b.ID, err)
	}
	return nil
}

// Get returns nil when no record exists or it has expired.
func (s *RedisBuildStore) Get(ctx context.Context, id string) (*repos.Build, error) {
	val, err := s.rdb.Get(ctx, redisBuildPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get build %q: %w", id, err)
	}
	var b repos.Build
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, fmt.Errorf("unmarshal build %q: %w", id, err)
	}
	return &b, nil
}
