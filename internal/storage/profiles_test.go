package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// newTestProfileStore connects to OWBRIDGE_TEST_DATABASE_URL or skips
func newTestProfileStore(t *testing.T) *ProfileStore {
	t.Helper()
	dsn := os.Getenv("OWBRIDGE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("OWBRIDGE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDBConnection(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewProfileStore(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM openwrap_profiles WHERE pub_id LIKE 'test-%'`); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	return store
}

func TestProfileStoreLifecycle(t *testing.T) {
	store := newTestProfileStore(t)
	ctx := context.Background()

	p, err := store.GetProfile(ctx, "test-pub", 1)
	if err != nil || p != nil {
		t.Fatalf("expected missing profile, got (%v, %v)", p, err)
	}

	version := 7
	in := &openwrap.Profile{
		PubID:     "test-pub",
		ProfileID: 1,
		Name:      "demo",
		Endpoint:  "https://ow.example.com/openrtb/2.5",
		VersionID: &version,
		Timeout:   1500 * time.Millisecond,
		TestMode:  true,
		BidFloor:  0.25,
		Enabled:   true,
	}
	if err := store.Upsert(ctx, in); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetProfile(ctx, "test-pub", 1)
	if err != nil || got == nil {
		t.Fatalf("GetProfile failed: (%v, %v)", got, err)
	}
	if got.Endpoint != in.Endpoint || got.Timeout != in.Timeout || !got.TestMode || !got.Enabled {
		t.Errorf("unexpected profile: %+v", got)
	}
	if got.VersionID == nil || *got.VersionID != 7 {
		t.Errorf("expected version 7, got %v", got.VersionID)
	}

	in.Name = "renamed"
	in.VersionID = nil
	if err := store.Upsert(ctx, in); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	list, err := store.List(ctx, "test-pub")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "renamed" || list[0].VersionID != nil {
		t.Errorf("unexpected list: %+v", list)
	}

	if err := store.Delete(ctx, "test-pub", 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ = store.GetProfile(ctx, "test-pub", 1)
	if got == nil || got.Enabled {
		t.Errorf("expected archived profile to be disabled, got %+v", got)
	}
	if list, _ := store.List(ctx, "test-pub"); len(list) != 0 {
		t.Errorf("archived profiles must not be listed, got %d", len(list))
	}

	if err := store.Delete(ctx, "test-pub", 99); err == nil {
		t.Error("expected error deleting unknown profile")
	}
}

func TestProfileStoreUpsertRequiresPublisher(t *testing.T) {
	store := NewProfileStore(nil)
	if err := store.Upsert(context.Background(), &openwrap.Profile{ProfileID: 1}); err == nil {
		t.Error("expected error for empty publisher id")
	}
}
