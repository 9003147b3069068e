package store

import (
	"context"
	"testing"
	"time"

	"github.com/stressease/stressease/internal/insight"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/testutil"
)

func TestInsightsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insights, err := NewInsights(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewInsights() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := insight.DailyInsight{
		Date:            "2026-03-03",
		DominantEmotion: "Stressed",
		Summary:         "A demanding day with stress running high.",
		ConfidenceScore: 74,
		MotivationQuote: "Breathe in calm, breathe out tension. 🌬️",
		Suggestions:     []string{"try a breathing exercise", "take a short walk", "wind down early"},
		GeneratedAt:     now,
	}

	t.Run("missing user", func(t *testing.T) {
		_, ok, err := insights.Latest(ctx, "nobody")
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if ok {
			t.Error("Latest() reported an insight for an unknown user")
		}
	})

	t.Run("bad date rejected", func(t *testing.T) {
		bad := first
		bad.Date = "03/03/2026"
		if err := insights.SaveLatest(ctx, "u1", bad); err == nil {
			t.Error("SaveLatest() accepted a malformed date")
		}
	})

	t.Run("save and load", func(t *testing.T) {
		if err := insights.SaveLatest(ctx, "u1", first); err != nil {
			t.Fatalf("SaveLatest() error = %v", err)
		}

		got, ok, err := insights.Latest(ctx, "u1")
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if !ok {
			t.Fatal("Latest() found no insight after SaveLatest()")
		}
		if got.Date != first.Date {
			t.Errorf("Date = %q, want %q", got.Date, first.Date)
		}
		if got.DominantEmotion != "Stressed" || got.ConfidenceScore != 74 {
			t.Errorf("insight = %+v", got)
		}
		if len(got.Suggestions) != 3 || got.Suggestions[0] != "try a breathing exercise" {
			t.Errorf("Suggestions = %v", got.Suggestions)
		}
		if !got.GeneratedAt.Equal(now) {
			t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, now)
		}
	})

	t.Run("replace keeps only the latest", func(t *testing.T) {
		second := insight.DailyInsight{
			Date:            "2026-03-04",
			DominantEmotion: "Calm",
			Summary:         "A much steadier day.",
			ConfidenceScore: 81,
			MotivationQuote: "Keep shining. ☀️",
			Suggestions:     []string{"a", "b", "c"},
			GeneratedAt:     now.Add(24 * time.Hour),
		}
		if err := insights.SaveLatest(ctx, "u1", second); err != nil {
			t.Fatalf("SaveLatest(replace) error = %v", err)
		}

		got, ok, err := insights.Latest(ctx, "u1")
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if !ok {
			t.Fatal("Latest() found no insight after replace")
		}
		if got.Date != "2026-03-04" || got.DominantEmotion != "Calm" {
			t.Errorf("insight after replace = %+v", got)
		}
	})

	t.Run("users are isolated", func(t *testing.T) {
		_, ok, err := insights.Latest(ctx, "u2")
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if ok {
			t.Error("Latest() leaked another user's insight")
		}
	})
}
