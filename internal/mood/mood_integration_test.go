package mood

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/testutil"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	entry := func(date string, mood, stress float64) DailyLog {
		return DailyLog{
			Date:       date,
			CoreScores: map[string]float64{ScoreMood: mood, ScoreEnergy: 3, ScoreSleep: 3, ScoreStress: stress},
			DassToday:  map[string]float64{DassDepression: 2, DassAnxiety: 2, DassStressToday: stress},
			CoreAvg:    (mood + 6 + stress) / 4,
		}
	}

	t.Run("first save", func(t *testing.T) {
		res, err := store.SaveDailyLog(ctx, "u1", entry("2026-03-01", 4, 2))
		if err != nil {
			t.Fatalf("SaveDailyLog() error = %v", err)
		}
		if res.IsUpdate {
			t.Error("IsUpdate = true, want false on first save")
		}
		if res.SubmissionCount != 1 {
			t.Errorf("SubmissionCount = %d, want 1", res.SubmissionCount)
		}
	})

	t.Run("same-day resubmission updates", func(t *testing.T) {
		first, _, err := store.LogByDate(ctx, "u1", "2026-03-01")
		if err != nil {
			t.Fatalf("LogByDate() error = %v", err)
		}

		res, err := store.SaveDailyLog(ctx, "u1", entry("2026-03-01", 2, 4))
		if err != nil {
			t.Fatalf("SaveDailyLog(resubmit) error = %v", err)
		}
		if !res.IsUpdate {
			t.Error("IsUpdate = false, want true on resubmission")
		}
		if res.SubmissionCount != 2 {
			t.Errorf("SubmissionCount = %d, want 2", res.SubmissionCount)
		}

		updated, ok, err := store.LogByDate(ctx, "u1", "2026-03-01")
		if err != nil || !ok {
			t.Fatalf("LogByDate() = %v, %v", ok, err)
		}
		if updated.CoreScores[ScoreMood] != 2 {
			t.Errorf("mood = %v, want resubmitted value 2", updated.CoreScores[ScoreMood])
		}
		if !updated.FirstSubmittedAt.Equal(first.FirstSubmittedAt) {
			t.Error("first_submitted_at changed on resubmission")
		}
		if !updated.UpdatedAt.After(first.FirstSubmittedAt.Add(-time.Second)) {
			t.Error("updated_at not refreshed")
		}
	})

	t.Run("last logs newest first", func(t *testing.T) {
		for _, d := range []string{"2026-03-02", "2026-03-03", "2026-03-04"} {
			if _, err := store.SaveDailyLog(ctx, "u1", entry(d, 3, 3)); err != nil {
				t.Fatalf("SaveDailyLog(%s) error = %v", d, err)
			}
		}

		logs, err := store.LastLogs(ctx, "u1", 3)
		if err != nil {
			t.Fatalf("LastLogs() error = %v", err)
		}
		if len(logs) != 3 {
			t.Fatalf("len(logs) = %d, want 3", len(logs))
		}
		want := []string{"2026-03-04", "2026-03-03", "2026-03-02"}
		for i, w := range want {
			if logs[i].Date != w {
				t.Errorf("logs[%d].Date = %s, want %s", i, logs[i].Date, w)
			}
		}
	})

	t.Run("count", func(t *testing.T) {
		count, err := store.Count(ctx, "u1")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 4 {
			t.Errorf("Count() = %d, want 4", count)
		}
	})

	t.Run("missing date", func(t *testing.T) {
		_, ok, err := store.LogByDate(ctx, "u1", "2020-01-01")
		if err != nil {
			t.Fatalf("LogByDate() error = %v", err)
		}
		if ok {
			t.Error("LogByDate() found a log that should not exist")
		}
	})

	t.Run("rejects missing core scores", func(t *testing.T) {
		_, err := store.SaveDailyLog(ctx, "u1", DailyLog{Date: "2026-03-05"})
		if !errors.Is(err, ErrInvalidLog) {
			t.Errorf("SaveDailyLog() error = %v, want ErrInvalidLog", err)
		}
	})

	t.Run("rejects bad date", func(t *testing.T) {
		_, err := store.SaveDailyLog(ctx, "u1", entry("03/01/2026", 3, 3))
		if !errors.Is(err, ErrInvalidLog) {
			t.Errorf("SaveDailyLog() error = %v, want ErrInvalidLog", err)
		}
	})
}
