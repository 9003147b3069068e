// Package crisis resolves country-specific crisis hotline resources.
// Lookups are served from a PostgreSQL-backed cache; entries older than the
// configured TTL are refreshed by searching the web, scraping the result
// pages, and extracting a verified contact list with the model. When a
// refresh fails a stale cache entry is still served rather than nothing.
package crisis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/genkit"

	"github.com/stressease/stressease/internal/log"
)

const (
	// contactCount is the number of hotline contacts every country entry
	// must carry. The extraction prompt asks for exactly this many and
	// validation rejects anything else.
	contactCount = 5

	// resultsPerQuery caps how many search hits each query contributes.
	resultsPerQuery = 5

	// maxPages caps how many result pages are scraped per refresh.
	maxPages = 6

	// maxPageChars truncates each scraped page before it enters the
	// extraction prompt.
	maxPageChars = 4000
)

// DefaultTTL is the cache freshness window when none is configured.
const DefaultTTL = 30 * 24 * time.Hour

// ErrUnavailable is returned when resources for a country can be served
// neither fresh nor from cache.
var ErrUnavailable = errors.New("crisis resources unavailable")

// Contact is a single crisis hotline entry.
type Contact struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	Website     string `json:"website"`
	Description string `json:"description"`
}

// Resources is the full set of hotline contacts for one country.
type Resources struct {
	Country  string    `json:"country"`
	Contacts []Contact `json:"crisis_hotlines"`
	CachedAt time.Time `json:"cached_at"`
}

// CacheStore persists resolved resources keyed by lower-cased country name.
type CacheStore interface {
	Get(ctx context.Context, country string) (Resources, bool, error)
	Put(ctx context.Context, res Resources) error
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a web search and returns up to limit results.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Fetcher retrieves pages and returns readable text keyed by URL. Pages
// that fail to fetch or yield no text are simply absent from the map.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string) map[string]string
}

// Config contains all required parameters for the crisis service.
type Config struct {
	Genkit *genkit.Genkit // Required
	Store  CacheStore     // Required
	Search Searcher       // Required
	Fetch  Fetcher        // Required
	Logger log.Logger

	ModelName string // Provider-qualified model name
	TTL       time.Duration
}

// Service answers crisis resource lookups.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	g         *genkit.Genkit
	store     CacheStore
	search    Searcher
	fetch     Fetcher
	logger    log.Logger
	modelName string
	ttl       time.Duration

	// extract is swappable in tests.
	extract func(ctx context.Context, country, corpus string) ([]Contact, error)

	now func() time.Time
}

// New creates a crisis service.
func New(cfg Config) (*Service, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if cfg.Search == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Fetch == nil {
		return nil, errors.New("fetcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Service{
		g:         cfg.Genkit,
		store:     cfg.Store,
		search:    cfg.Search,
		fetch:     cfg.Fetch,
		logger:    logger,
		modelName: cfg.ModelName,
		ttl:       ttl,
		now:       time.Now,
	}
	s.extract = s.modelExtract
	return s, nil
}

// Resources returns the hotline contacts for country, refreshing the cache
// when its entry is missing or older than the TTL. A failed refresh falls
// back to the stale entry when one exists.
func (s *Service) Resources(ctx context.Context, country string) (Resources, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return Resources{}, errors.New("country is required")
	}
	key := strings.ToLower(country)

	cached, haveCached, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("crisis cache read failed", "country", key, "error", err)
		haveCached = false
	}
	if haveCached && s.now().Sub(cached.CachedAt) < s.ttl {
		s.logger.Debug("crisis cache hit", "country", key)
		return cached, nil
	}

	fresh, err := s.refresh(ctx, country)
	if err != nil {
		if haveCached {
			s.logger.Warn("crisis refresh failed, serving stale cache",
				"country", key, "cached_at", cached.CachedAt, "error", err)
			return cached, nil
		}
		return Resources{}, fmt.Errorf("%w for %q: %v", ErrUnavailable, country, err)
	}

	fresh.Country = country
	fresh.CachedAt = s.now()
	if err := s.store.Put(ctx, fresh); err != nil {
		// The caller still gets the fresh data.
		s.logger.Warn("crisis cache write failed", "country", key, "error", err)
	}
	return fresh, nil
}

// refresh performs a full search-scrape-extract cycle for one country.
func (s *Service) refresh(ctx context.Context, country string) (Resources, error) {
	urls, err := s.collectURLs(ctx, country)
	if err != nil {
		return Resources{}, err
	}
	if len(urls) == 0 {
		return Resources{}, errors.New("no search results")
	}

	pages := s.fetch.Fetch(ctx, urls)
	corpus := buildCorpus(urls, pages)
	if corpus == "" {
		return Resources{}, errors.New("no readable pages")
	}

	contacts, err := s.extract(ctx, country, corpus)
	if err != nil {
		return Resources{}, fmt.Errorf("extracting contacts: %w", err)
	}
	if err := validateContacts(contacts); err != nil {
		return Resources{}, err
	}
	return Resources{Contacts: contacts}, nil
}

// collectURLs runs the per-country search queries and returns a deduplicated
// URL list, capped at maxPages. Individual query failures are tolerated as
// long as at least one query succeeds.
func (s *Service) collectURLs(ctx context.Context, country string) ([]string, error) {
	year := s.now().Year()
	queries := []string{
		fmt.Sprintf("%s emergency number %d", country, year),
		fmt.Sprintf("%s mental health crisis hotline %d", country, year),
		fmt.Sprintf("%s crisis helpline %d", country, year),
	}

	var (
		urls    []string
		seen    = make(map[string]struct{})
		lastErr error
		failed  int
	)
	for _, q := range queries {
		results, err := s.search.Search(ctx, q, resultsPerQuery)
		if err != nil {
			s.logger.Warn("crisis search query failed", "query", q, "error", err)
			lastErr = err
			failed++
			continue
		}
		for _, r := range results {
			if r.URL == "" {
				continue
			}
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			urls = append(urls, r.URL)
		}
	}
	if failed == len(queries) {
		return nil, fmt.Errorf("all search queries failed: %w", lastErr)
	}
	if len(urls) > maxPages {
		urls = urls[:maxPages]
	}
	return urls, nil
}

// buildCorpus assembles scraped page texts into one prompt block, keeping
// the original URL order and truncating each page.
func buildCorpus(urls []string, pages map[string]string) string {
	var b strings.Builder
	for _, u := range urls {
		text, ok := pages[u]
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		text = truncateAtRune(text, maxPageChars)
		fmt.Fprintf(&b, "Source: %s\n%s\n\n", u, text)
	}
	return strings.TrimSpace(b.String())
}

// truncateAtRune caps s at max bytes without splitting a UTF-8 sequence.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// validateContacts enforces the exact contact count and rejects entries
// with any blank field.
func validateContacts(contacts []Contact) error {
	if len(contacts) != contactCount {
		return fmt.Errorf("expected %d contacts, got %d", contactCount, len(contacts))
	}
	for i, c := range contacts {
		switch {
		case strings.TrimSpace(c.Name) == "":
			return fmt.Errorf("contact %d: missing name", i)
		case strings.TrimSpace(c.Number) == "":
			return fmt.Errorf("contact %d: missing number", i)
		case strings.TrimSpace(c.Website) == "":
			return fmt.Errorf("contact %d: missing website", i)
		case strings.TrimSpace(c.Description) == "":
			return fmt.Errorf("contact %d: missing description", i)
		}
	}
	return nil
}
