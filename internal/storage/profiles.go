// Package storage provides profile persistence for the bridge
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// Schema creates the profiles table
const Schema = `
CREATE TABLE IF NOT EXISTS openwrap_profiles (
	pub_id      TEXT        NOT NULL,
	profile_id  INTEGER     NOT NULL,
	name        TEXT        NOT NULL DEFAULT '',
	endpoint    TEXT        NOT NULL DEFAULT '',
	version_id  INTEGER,
	timeout_ms  INTEGER     NOT NULL DEFAULT 0,
	test_mode   BOOLEAN     NOT NULL DEFAULT FALSE,
	bid_floor   NUMERIC(10,4) NOT NULL DEFAULT 0,
	status      TEXT        NOT NULL DEFAULT 'active',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (pub_id, profile_id)
)`

const profileColumns = `pub_id, profile_id, name, endpoint, version_id, timeout_ms, test_mode, bid_floor, status`

// ProfileStore provides database operations for OpenWrap profiles
type ProfileStore struct {
	db *sql.DB
}

// NewProfileStore creates a new profile store
func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Migrate creates the schema if it does not exist
func (s *ProfileStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*openwrap.Profile, error) {
	var p openwrap.Profile
	var versionID sql.NullInt64
	var timeoutMS int64
	var status string

	err := row.Scan(
		&p.PubID,
		&p.ProfileID,
		&p.Name,
		&p.Endpoint,
		&versionID,
		&timeoutMS,
		&p.TestMode,
		&p.BidFloor,
		&status,
	)
	if err != nil {
		return nil, err
	}

	if versionID.Valid {
		v := int(versionID.Int64)
		p.VersionID = &v
	}
	p.Timeout = time.Duration(timeoutMS) * time.Millisecond
	p.Enabled = status == "active"
	return &p, nil
}

// GetProfile retrieves a profile. Archived profiles are returned disabled;
// a missing profile is (nil, nil).
func (s *ProfileStore) GetProfile(ctx context.Context, pubID string, profileID int) (*openwrap.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM openwrap_profiles WHERE pub_id = $1 AND profile_id = $2`

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, pubID, profileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// List retrieves every profile of a publisher, active ones only
func (s *ProfileStore) List(ctx context.Context, pubID string) ([]*openwrap.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM openwrap_profiles
		WHERE pub_id = $1 AND status = 'active'
		ORDER BY profile_id`

	rows, err := s.db.QueryContext(ctx, query, pubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*openwrap.Profile, 0, 16)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Upsert creates or replaces a profile
func (s *ProfileStore) Upsert(ctx context.Context, p *openwrap.Profile) error {
	if p.PubID == "" {
		return errors.New("profile requires a publisher id")
	}

	status := "archived"
	if p.Enabled {
		status = "active"
	}
	var versionID sql.NullInt64
	if p.VersionID != nil {
		versionID = sql.NullInt64{Int64: int64(*p.VersionID), Valid: true}
	}

	query := `
		INSERT INTO openwrap_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pub_id, profile_id) DO UPDATE
		SET name = EXCLUDED.name, endpoint = EXCLUDED.endpoint, version_id = EXCLUDED.version_id,
		    timeout_ms = EXCLUDED.timeout_ms, test_mode = EXCLUDED.test_mode,
		    bid_floor = EXCLUDED.bid_floor, status = EXCLUDED.status, updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		p.PubID,
		p.ProfileID,
		p.Name,
		p.Endpoint,
		versionID,
		p.Timeout.Milliseconds(),
		p.TestMode,
		p.BidFloor,
		status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Delete soft-deletes a profile by setting status to 'archived'
func (s *ProfileStore) Delete(ctx context.Context, pubID string, profileID int) error {
	query := `
		UPDATE openwrap_profiles
		SET status = 'archived', updated_at = NOW()
		WHERE pub_id = $1 AND profile_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, pubID, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found: %s/%d", pubID, profileID)
	}
	return nil
}

// NewDBConnection opens a PostgreSQL connection from a URL or DSN
func NewDBConnection(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Profile lookups are rare: one per ad load
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
