package crisis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stressease/stressease/internal/log"
)

type stubStore struct {
	res    Resources
	ok     bool
	getErr error
	putErr error
	puts   []Resources
}

func (s *stubStore) Get(_ context.Context, _ string) (Resources, bool, error) {
	return s.res, s.ok, s.getErr
}

func (s *stubStore) Put(_ context.Context, res Resources) error {
	s.puts = append(s.puts, res)
	return s.putErr
}

type stubSearch struct {
	results map[string][]SearchResult
	err     error
	queries []string
}

func (s *stubSearch) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if s.results == nil {
		return []SearchResult{{Title: "t", URL: "https://example.org/help"}}, nil
	}
	return s.results[query], nil
}

type stubFetch struct {
	pages map[string]string
}

func (f *stubFetch) Fetch(_ context.Context, urls []string) map[string]string {
	if f.pages != nil {
		return f.pages
	}
	pages := make(map[string]string, len(urls))
	for _, u := range urls {
		pages[u] = "hotline text for " + u
	}
	return pages
}

func goodContacts() []Contact {
	contacts := make([]Contact, contactCount)
	for i := range contacts {
		contacts[i] = Contact{
			Name:        fmt.Sprintf("Line %d", i),
			Number:      fmt.Sprintf("0800-%04d", i),
			Website:     fmt.Sprintf("https://line%d.example.org", i),
			Description: "24/7 crisis support",
		}
	}
	return contacts
}

// newTestService builds a service with stub collaborators and a canned
// extractor. The genkit requirement is bypassed because tests never reach
// the model.
func newTestService(t *testing.T, store *stubStore, search Searcher, fetch Fetcher) *Service {
	t.Helper()
	if search == nil {
		search = &stubSearch{}
	}
	if fetch == nil {
		fetch = &stubFetch{}
	}
	s := &Service{
		store:  store,
		search: search,
		fetch:  fetch,
		logger: log.NewNop(),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	s.extract = func(_ context.Context, _, _ string) ([]Contact, error) {
		return goodContacts(), nil
	}
	return s
}

func TestResourcesCacheHit(t *testing.T) {
	cached := Resources{
		Country:  "Taiwan",
		Contacts: goodContacts(),
		CachedAt: time.Now().Add(-24 * time.Hour),
	}
	store := &stubStore{res: cached, ok: true}
	search := &stubSearch{}
	s := newTestService(t, store, search, nil)

	got, err := s.Resources(context.Background(), "Taiwan")
	if err != nil {
		t.Fatalf("Resources() error = %v", err)
	}
	if got.Country != "Taiwan" || len(got.Contacts) != contactCount {
		t.Errorf("got country %q with %d contacts, want cached entry", got.Country, len(got.Contacts))
	}
	if len(search.queries) != 0 {
		t.Errorf("cache hit ran %d searches, want 0", len(search.queries))
	}
	if len(store.puts) != 0 {
		t.Errorf("cache hit wrote %d entries, want 0", len(store.puts))
	}
}

func TestResourcesRefreshOnStaleEntry(t *testing.T) {
	stale := Resources{
		Country:  "Taiwan",
		Contacts: goodContacts()[:contactCount],
		CachedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	store := &stubStore{res: stale, ok: true}
	search := &stubSearch{}
	s := newTestService(t, store, search, nil)

	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	got, err := s.Resources(context.Background(), "Taiwan")
	if err != nil {
		t.Fatalf("Resources() error = %v", err)
	}
	if !got.CachedAt.Equal(fixed) {
		t.Errorf("CachedAt = %v, want refresh time %v", got.CachedAt, fixed)
	}
	if len(store.puts) != 1 {
		t.Fatalf("wrote %d cache entries, want 1", len(store.puts))
	}
	if store.puts[0].Country != "Taiwan" {
		t.Errorf("cached country = %q, want Taiwan", store.puts[0].Country)
	}
	if len(search.queries) == 0 {
		t.Error("stale entry did not trigger a search")
	}
	for _, q := range search.queries {
		if !strings.Contains(q, "2026") {
			t.Errorf("query %q missing current year", q)
		}
	}
}

func TestResourcesStaleFallback(t *testing.T) {
	stale := Resources{
		Country:  "Japan",
		Contacts: goodContacts(),
		CachedAt: time.Now().Add(-60 * 24 * time.Hour),
	}
	store := &stubStore{res: stale, ok: true}
	search := &stubSearch{err: errors.New("searxng down")}
	s := newTestService(t, store, search, nil)

	got, err := s.Resources(context.Background(), "Japan")
	if err != nil {
		t.Fatalf("Resources() error = %v, want stale fallback", err)
	}
	if !got.CachedAt.Equal(stale.CachedAt) {
		t.Errorf("CachedAt = %v, want stale %v", got.CachedAt, stale.CachedAt)
	}
	if len(store.puts) != 0 {
		t.Errorf("failed refresh wrote %d cache entries, want 0", len(store.puts))
	}
}

func TestResourcesUnavailable(t *testing.T) {
	store := &stubStore{}
	search := &stubSearch{err: errors.New("searxng down")}
	s := newTestService(t, store, search, nil)

	_, err := s.Resources(context.Background(), "Japan")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Resources() error = %v, want ErrUnavailable", err)
	}
}

func TestResourcesExtractionFailure(t *testing.T) {
	store := &stubStore{}
	s := newTestService(t, store, nil, nil)
	s.extract = func(_ context.Context, _, _ string) ([]Contact, error) {
		return nil, errors.New("model refused")
	}

	_, err := s.Resources(context.Background(), "Japan")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Resources() error = %v, want ErrUnavailable", err)
	}
}

func TestResourcesCacheWriteFailureNonFatal(t *testing.T) {
	store := &stubStore{putErr: errors.New("disk full")}
	s := newTestService(t, store, nil, nil)

	got, err := s.Resources(context.Background(), "Japan")
	if err != nil {
		t.Fatalf("Resources() error = %v, want success despite cache write failure", err)
	}
	if len(got.Contacts) != contactCount {
		t.Errorf("got %d contacts, want %d", len(got.Contacts), contactCount)
	}
}

func TestResourcesEmptyCountry(t *testing.T) {
	s := newTestService(t, &stubStore{}, nil, nil)
	if _, err := s.Resources(context.Background(), "  "); err == nil {
		t.Fatal("Resources() with blank country did not fail")
	}
}

func TestCollectURLsDedupesAndCaps(t *testing.T) {
	year := time.Now().Year()
	dup := SearchResult{URL: "https://example.org/shared"}
	many := make([]SearchResult, 0, resultsPerQuery)
	for i := 0; i < resultsPerQuery; i++ {
		many = append(many, SearchResult{URL: fmt.Sprintf("https://example.org/p%d", i)})
	}
	search := &stubSearch{results: map[string][]SearchResult{
		fmt.Sprintf("Taiwan emergency number %d", year):              {dup, many[0], many[1]},
		fmt.Sprintf("Taiwan mental health crisis hotline %d", year):  {dup, many[2], many[3]},
		fmt.Sprintf("Taiwan crisis helpline %d", year):               {many[4], {URL: ""}, {URL: "https://example.org/extra"}},
	}}
	s := newTestService(t, &stubStore{}, search, nil)

	urls, err := s.collectURLs(context.Background(), "Taiwan")
	if err != nil {
		t.Fatalf("collectURLs() error = %v", err)
	}
	if len(urls) != maxPages {
		t.Fatalf("got %d urls, want cap %d", len(urls), maxPages)
	}
	seen := make(map[string]int)
	for _, u := range urls {
		seen[u]++
		if u == "" {
			t.Error("empty URL survived collection")
		}
	}
	if seen["https://example.org/shared"] != 1 {
		t.Errorf("shared URL appeared %d times, want 1", seen["https://example.org/shared"])
	}
}

func TestCollectURLsToleratesPartialFailure(t *testing.T) {
	calls := 0
	search := searchFunc(func(_ context.Context, query string, _ int) ([]SearchResult, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("flaky")
		}
		return []SearchResult{{URL: fmt.Sprintf("https://example.org/%d", calls)}}, nil
	})
	s := newTestService(t, &stubStore{}, search, nil)

	urls, err := s.collectURLs(context.Background(), "Taiwan")
	if err != nil {
		t.Fatalf("collectURLs() error = %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("got %d urls, want 2", len(urls))
	}
}

type searchFunc func(ctx context.Context, query string, limit int) ([]SearchResult, error)

func (f searchFunc) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return f(ctx, query, limit)
}

func TestBuildCorpus(t *testing.T) {
	long := strings.Repeat("x", maxPageChars+100)
	urls := []string{"https://a.example", "https://b.example", "https://c.example"}
	pages := map[string]string{
		"https://a.example": "first page",
		"https://b.example": "   ",
		"https://c.example": long,
	}

	corpus := buildCorpus(urls, pages)
	if !strings.Contains(corpus, "Source: https://a.example\nfirst page") {
		t.Errorf("corpus missing first page:\n%s", corpus)
	}
	if strings.Contains(corpus, "https://b.example") {
		t.Error("blank page included in corpus")
	}
	if strings.Contains(corpus, long) {
		t.Error("long page was not truncated")
	}
	if ai := strings.Index(corpus, "https://a.example"); ai > strings.Index(corpus, "https://c.example") {
		t.Error("corpus does not preserve URL order")
	}
}

func TestTruncateAtRune(t *testing.T) {
	tests := []struct {
		name string
		s    string
		max  int
		want string
	}{
		{name: "short string untouched", s: "hello", max: 10, want: "hello"},
		{name: "exact length untouched", s: "hello", max: 5, want: "hello"},
		{name: "ascii cut", s: "hello", max: 3, want: "hel"},
		// "あ" is 3 bytes; a 4-byte cap lands mid-rune and must back up.
		{name: "multibyte cut backs up", s: "ああ", max: 4, want: "あ"},
		{name: "multibyte cut on boundary", s: "ああ", max: 3, want: "あ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateAtRune(tt.s, tt.max)
			if got != tt.want {
				t.Errorf("truncateAtRune(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateAtRune(%q, %d) produced invalid UTF-8", tt.s, tt.max)
			}
		})
	}
}

func TestBuildCorpusKeepsUTF8Valid(t *testing.T) {
	// 3-byte runes sized so the page cap falls mid-sequence.
	page := strings.Repeat("あ", maxPageChars/3+10)
	corpus := buildCorpus([]string{"https://jp.example"}, map[string]string{"https://jp.example": page})

	if !utf8.ValidString(corpus) {
		t.Error("truncated corpus contains invalid UTF-8")
	}
	if strings.Contains(corpus, page) {
		t.Error("oversized page was not truncated")
	}
}

func TestValidateContacts(t *testing.T) {
	blank := func(mutate func(*Contact)) []Contact {
		contacts := goodContacts()
		mutate(&contacts[2])
		return contacts
	}

	tests := []struct {
		name     string
		contacts []Contact
		wantErr  bool
	}{
		{name: "valid", contacts: goodContacts()},
		{name: "too few", contacts: goodContacts()[:contactCount-1], wantErr: true},
		{name: "too many", contacts: append(goodContacts(), Contact{Name: "x", Number: "1", Website: "w", Description: "d"}), wantErr: true},
		{name: "blank name", contacts: blank(func(c *Contact) { c.Name = " " }), wantErr: true},
		{name: "blank number", contacts: blank(func(c *Contact) { c.Number = "" }), wantErr: true},
		{name: "blank website", contacts: blank(func(c *Contact) { c.Website = "" }), wantErr: true},
		{name: "blank description", contacts: blank(func(c *Contact) { c.Description = "\t" }), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContacts(tt.contacts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContacts() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
