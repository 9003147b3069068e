package store

import (
	"context"
	"testing"
	"time"

	"github.com/stressease/stressease/internal/crisis"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/testutil"
)

func TestCrisisCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cache, err := NewCrisisCache(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewCrisisCache() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	contacts := []crisis.Contact{
		{Name: "Lifeline", Number: "1995", Website: "https://lifeline.example", Description: "24/7 emotional support"},
		{Name: "Teacher Chang", Number: "1980", Website: "https://1980.example", Description: "counseling hotline"},
	}

	t.Run("missing country", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, "nowhere")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok {
			t.Error("Get() reported an entry for an unknown country")
		}
	})

	t.Run("put and get", func(t *testing.T) {
		res := crisis.Resources{Country: "Taiwan", Contacts: contacts, CachedAt: now}
		if err := cache.Put(ctx, res); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		// Lookup is case-insensitive on country.
		got, ok, err := cache.Get(ctx, "TAIWAN")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !ok {
			t.Fatal("Get() found no entry after Put()")
		}
		if got.Country != "Taiwan" {
			t.Errorf("Country = %q, want Taiwan", got.Country)
		}
		if !got.CachedAt.Equal(now) {
			t.Errorf("CachedAt = %v, want %v", got.CachedAt, now)
		}
		if len(got.Contacts) != 2 || got.Contacts[0].Number != "1995" {
			t.Errorf("Contacts = %+v", got.Contacts)
		}
	})

	t.Run("replace", func(t *testing.T) {
		later := now.Add(48 * time.Hour)
		res := crisis.Resources{
			Country:  "taiwan",
			Contacts: contacts[:1],
			CachedAt: later,
		}
		if err := cache.Put(ctx, res); err != nil {
			t.Fatalf("Put(replace) error = %v", err)
		}

		got, ok, err := cache.Get(ctx, "taiwan")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !ok {
			t.Fatal("Get() found no entry after replace")
		}
		if len(got.Contacts) != 1 {
			t.Errorf("got %d contacts after replace, want 1", len(got.Contacts))
		}
		if !got.CachedAt.Equal(later) {
			t.Errorf("CachedAt = %v, want %v", got.CachedAt, later)
		}
	})
}
