package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
	"github.com/reloved/flutter-openwrap-sdk/pkg/redis"
)

type countingStore struct {
	mu       sync.Mutex
	profiles map[string]*openwrap.Profile
	calls    int
	err      error
}

func (s *countingStore) GetProfile(ctx context.Context, pubID string, profileID int) (*openwrap.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.profiles[profileKey(pubID, profileID)], nil
}

func (s *countingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestCache(t *testing.T, backing openwrap.ProfileStore) (*miniredis.Miniredis, *CachedProfileStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := redis.New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return mr, NewCachedProfileStore(backing, client, time.Minute)
}

func TestCachedProfileStoreReadThrough(t *testing.T) {
	version := 2
	backing := &countingStore{profiles: map[string]*openwrap.Profile{
		profileKey("156276", 1165): {
			PubID:     "156276",
			ProfileID: 1165,
			Endpoint:  "https://ow.example.com/openrtb/2.5",
			VersionID: &version,
			Timeout:   800 * time.Millisecond,
			Enabled:   true,
		},
	}}
	mr, store := newTestCache(t, backing)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := store.GetProfile(ctx, "156276", 1165)
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if p == nil || p.Endpoint != "https://ow.example.com/openrtb/2.5" {
			t.Fatalf("unexpected profile: %+v", p)
		}
		if p.VersionID == nil || *p.VersionID != 2 || p.Timeout != 800*time.Millisecond {
			t.Errorf("profile did not survive the cache: %+v", p)
		}
	}

	if backing.callCount() != 1 {
		t.Errorf("expected 1 backing call, got %d", backing.callCount())
	}
	if !mr.Exists("owbridge:profile:156276:1165") {
		t.Error("expected cached key")
	}
	if ttl := mr.TTL("owbridge:profile:156276:1165"); ttl != time.Minute {
		t.Errorf("expected 1m TTL, got %v", ttl)
	}
}

func TestCachedProfileStoreCachesMissing(t *testing.T) {
	backing := &countingStore{profiles: map[string]*openwrap.Profile{}}
	_, store := newTestCache(t, backing)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p, err := store.GetProfile(ctx, "1", 2)
		if err != nil || p != nil {
			t.Fatalf("expected (nil, nil), got (%v, %v)", p, err)
		}
	}
	if backing.callCount() != 1 {
		t.Errorf("expected missing profile to be cached, got %d calls", backing.callCount())
	}
}

func TestCachedProfileStoreBackingError(t *testing.T) {
	backing := &countingStore{err: errors.New("db down")}
	mr, store := newTestCache(t, backing)

	if _, err := store.GetProfile(context.Background(), "1", 2); err == nil {
		t.Fatal("expected backing error")
	}
	if mr.Exists("owbridge:profile:1:2") {
		t.Error("errors must not be cached")
	}
}

func TestCachedProfileStoreRedisDown(t *testing.T) {
	backing := &countingStore{profiles: map[string]*openwrap.Profile{
		profileKey("1", 2): {PubID: "1", ProfileID: 2, Enabled: true},
	}}
	mr, store := newTestCache(t, backing)
	mr.Close()

	p, err := store.GetProfile(context.Background(), "1", 2)
	if err != nil {
		t.Fatalf("expected pass-through when redis is down, got %v", err)
	}
	if p == nil || p.ProfileID != 2 {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestCachedProfileStoreInvalidate(t *testing.T) {
	backing := &countingStore{profiles: map[string]*openwrap.Profile{
		profileKey("1", 2): {PubID: "1", ProfileID: 2, Enabled: true},
		profileKey("1", 3): {PubID: "1", ProfileID: 3, Enabled: true},
	}}
	mr, store := newTestCache(t, backing)
	ctx := context.Background()

	store.GetProfile(ctx, "1", 2)
	store.GetProfile(ctx, "1", 3)

	if err := store.Invalidate(ctx, "1", 2); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if mr.Exists("owbridge:profile:1:2") {
		t.Error("expected key removed")
	}

	if err := store.InvalidatePublisher(ctx, "1"); err != nil {
		t.Fatalf("InvalidatePublisher failed: %v", err)
	}
	if mr.Exists("owbridge:profile:1:3") || mr.Exists("owbridge:profiles:1") {
		t.Error("expected publisher keys removed")
	}

	store.GetProfile(ctx, "1", 3)
	if backing.callCount() != 3 {
		t.Errorf("expected reload after invalidation, got %d calls", backing.callCount())
	}
}
