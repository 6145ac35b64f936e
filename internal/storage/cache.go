package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
	"github.com/reloved/flutter-openwrap-sdk/pkg/redis"
)

// missingMarker is cached for profiles the backing store does not have
const missingMarker = "null"

// CachedProfileStore is a read-through Redis cache in front of a ProfileStore.
// Redis failures are logged and the backing store is used directly.
type CachedProfileStore struct {
	backing openwrap.ProfileStore
	cache   *redis.Client
	ttl     time.Duration
}

// NewCachedProfileStore wraps backing. A zero ttl uses the default.
func NewCachedProfileStore(backing openwrap.ProfileStore, cache *redis.Client, ttl time.Duration) *CachedProfileStore {
	if ttl <= 0 {
		ttl = config.ProfileCacheTTL
	}
	return &CachedProfileStore{backing: backing, cache: cache, ttl: ttl}
}

func profileKey(pubID string, profileID int) string {
	return "profile:" + pubID + ":" + strconv.Itoa(profileID)
}

func publisherKey(pubID string) string {
	return "profiles:" + pubID
}

// GetProfile returns the cached profile or loads and caches it
func (s *CachedProfileStore) GetProfile(ctx context.Context, pubID string, profileID int) (*openwrap.Profile, error) {
	log := logger.Storage()
	key := profileKey(pubID, profileID)

	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Profile cache read failed")
	} else if found {
		if cached == missingMarker {
			return nil, nil
		}
		var p openwrap.Profile
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			return &p, nil
		}
		log.Warn().Str("key", key).Msg("Discarding malformed cached profile")
	}

	p, err := s.backing.GetProfile(ctx, pubID, profileID)
	if err != nil {
		return nil, err
	}

	value := missingMarker
	if p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		value = string(data)
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Profile cache write failed")
		return p, nil
	}
	if err := s.cache.SAdd(ctx, publisherKey(pubID), key); err != nil {
		log.Debug().Err(err).Str("pub_id", pubID).Msg("Failed to index cached profile")
	}
	return p, nil
}

// Invalidate drops one cached profile
func (s *CachedProfileStore) Invalidate(ctx context.Context, pubID string, profileID int) error {
	return s.cache.Del(ctx, profileKey(pubID, profileID))
}

// InvalidatePublisher drops every cached profile of a publisher
func (s *CachedProfileStore) InvalidatePublisher(ctx context.Context, pubID string) error {
	keys, err := s.cache.SMembers(ctx, publisherKey(pubID))
	if err != nil {
		return fmt.Errorf("failed to list cached profiles: %w", err)
	}
	return s.cache.Del(ctx, append(keys, publisherKey(pubID))...)
}
