package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stressease/stressease/internal/crisis"
	"github.com/stressease/stressease/internal/log"
)

const getCrisisSQL = `SELECT resources, cached_at
	FROM crisis_resources
	WHERE country = $1`

const putCrisisSQL = `INSERT INTO crisis_resources (country, resources, cached_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (country) DO UPDATE SET
		resources = EXCLUDED.resources,
		cached_at = EXCLUDED.cached_at`

// crisisPayload is the JSONB wire shape of a cached resource set. CachedAt
// lives in its own column so freshness checks stay in SQL-visible form.
type crisisPayload struct {
	Country  string           `json:"country"`
	Contacts []crisis.Contact `json:"crisis_hotlines"`
}

// CrisisCache is the PostgreSQL-backed crisis resource cache, keyed by
// lower-cased country name.
type CrisisCache struct {
	db     querier
	logger log.Logger
}

// NewCrisisCache creates a CrisisCache. db is typically a *pgxpool.Pool.
func NewCrisisCache(db querier, logger log.Logger) (*CrisisCache, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &CrisisCache{db: db, logger: logger}, nil
}

// Get returns the cached resources for country. The second return value is
// false when no entry exists.
func (c *CrisisCache) Get(ctx context.Context, country string) (crisis.Resources, bool, error) {
	var (
		raw      []byte
		cachedAt time.Time
	)
	err := c.db.QueryRow(ctx, getCrisisSQL, cacheKey(country)).Scan(&raw, &cachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return crisis.Resources{}, false, nil
	}
	if err != nil {
		return crisis.Resources{}, false, fmt.Errorf("loading crisis resources: %w", err)
	}

	var payload crisisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return crisis.Resources{}, false, fmt.Errorf("decoding crisis resources: %w", err)
	}
	return crisis.Resources{
		Country:  payload.Country,
		Contacts: payload.Contacts,
		CachedAt: cachedAt,
	}, true, nil
}

// Put stores or replaces the cached resources for res.Country.
func (c *CrisisCache) Put(ctx context.Context, res crisis.Resources) error {
	raw, err := json.Marshal(crisisPayload{
		Country:  res.Country,
		Contacts: res.Contacts,
	})
	if err != nil {
		return fmt.Errorf("encoding crisis resources: %w", err)
	}
	if _, err := c.db.Exec(ctx, putCrisisSQL, cacheKey(res.Country), raw, res.CachedAt); err != nil {
		return fmt.Errorf("saving crisis resources: %w", err)
	}
	return nil
}

func cacheKey(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
