package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/log"
)

const getProfileSQL = `SELECT display_name, age_range, occupation
	FROM user_profiles
	WHERE user_id = $1`

const upsertProfileSQL = `INSERT INTO user_profiles (user_id, display_name, age_range, occupation, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		display_name = EXCLUDED.display_name,
		age_range = EXCLUDED.age_range,
		occupation = EXCLUDED.occupation,
		updated_at = EXCLUDED.updated_at`

// Profiles is the PostgreSQL-backed user profile store.
type Profiles struct {
	db     querier
	logger log.Logger
}

// NewProfiles creates a Profiles store. db is typically a *pgxpool.Pool.
func NewProfiles(db querier, logger log.Logger) (*Profiles, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Profiles{db: db, logger: logger}, nil
}

// UserProfile returns the user's stored profile. A user who never completed
// onboarding has no row; that is a zero profile, not an error.
func (p *Profiles) UserProfile(ctx context.Context, userID string) (chat.Profile, error) {
	var (
		displayName *string
		ageRange    *string
		occupation  *string
	)
	err := p.db.QueryRow(ctx, getProfileSQL, userID).Scan(&displayName, &ageRange, &occupation)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Profile{}, nil
	}
	if err != nil {
		return chat.Profile{}, fmt.Errorf("fetching profile for %s: %w", userID, err)
	}

	var profile chat.Profile
	if displayName != nil {
		profile.DisplayName = *displayName
	}
	if ageRange != nil {
		profile.AgeRange = *ageRange
	}
	if occupation != nil {
		profile.Occupation = *occupation
	}
	return profile, nil
}

// Upsert stores or replaces a user's profile.
func (p *Profiles) Upsert(ctx context.Context, userID string, profile chat.Profile) error {
	now := time.Now().UTC()
	if _, err := p.db.Exec(ctx, upsertProfileSQL,
		userID,
		nullable(profile.DisplayName),
		nullable(profile.AgeRange),
		nullable(profile.Occupation),
		now,
	); err != nil {
		return fmt.Errorf("upserting profile for %s: %w", userID, err)
	}
	p.logger.Debug("upserted profile", "user_id", userID)
	return nil
}

// nullable maps empty strings to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
