package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/testutil"
)

func TestTurnStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ts, err := NewTurnStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewTurnStore() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("session lifecycle", func(t *testing.T) {
		if err := ts.CreateSessionMetadata(ctx, "u1", "s1", now); err != nil {
			t.Fatalf("CreateSessionMetadata() error = %v", err)
		}
		// Replay of the same create is a no-op.
		if err := ts.CreateSessionMetadata(ctx, "u1", "s1", now.Add(time.Hour)); err != nil {
			t.Fatalf("CreateSessionMetadata(replay) error = %v", err)
		}

		var createdAt time.Time
		if err := db.Pool.QueryRow(ctx,
			`SELECT created_at FROM chat_sessions WHERE user_id = 'u1' AND session_id = 's1'`,
		).Scan(&createdAt); err != nil {
			t.Fatalf("reading session row: %v", err)
		}
		if !createdAt.Equal(now) {
			t.Errorf("created_at = %v, want %v (replay must not overwrite)", createdAt, now)
		}

		later := now.Add(10 * time.Minute)
		if err := ts.UpdateSessionActivity(ctx, "u1", "s1", later); err != nil {
			t.Fatalf("UpdateSessionActivity() error = %v", err)
		}

		if err := ts.MarkSessionEnded(ctx, "u1", "s1"); err != nil {
			t.Fatalf("MarkSessionEnded() error = %v", err)
		}
		if err := ts.MarkSessionEnded(ctx, "u1", "s1"); err != nil {
			t.Fatalf("MarkSessionEnded(replay) error = %v", err)
		}

		// Ended is terminal: late activity updates are ignored.
		if err := ts.UpdateSessionActivity(ctx, "u1", "s1", later.Add(time.Hour)); err != nil {
			t.Fatalf("UpdateSessionActivity(after end) error = %v", err)
		}
		var status string
		var lastActivity time.Time
		if err := db.Pool.QueryRow(ctx,
			`SELECT status, last_activity FROM chat_sessions WHERE user_id = 'u1' AND session_id = 's1'`,
		).Scan(&status, &lastActivity); err != nil {
			t.Fatalf("reading session row: %v", err)
		}
		if status != "ended" {
			t.Errorf("status = %s, want ended", status)
		}
		if !lastActivity.Equal(later) {
			t.Errorf("last_activity = %v, want %v", lastActivity, later)
		}
	})

	t.Run("append and load turns", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			err := ts.AppendTurn(ctx, "u2", "s2", chat.Turn{
				Number:        i,
				UserText:      fmt.Sprintf("q%d", i),
				AssistantText: fmt.Sprintf("a%d", i),
				Timestamp:     now,
			})
			if err != nil {
				t.Fatalf("AppendTurn(%d) error = %v", i, err)
			}
		}

		turns, err := ts.LoadTurns(ctx, "u2", "s2", 10)
		if err != nil {
			t.Fatalf("LoadTurns() error = %v", err)
		}
		if len(turns) != 4 {
			t.Fatalf("len(turns) = %d, want 4", len(turns))
		}
		for i, turn := range turns {
			if turn.Number != i {
				t.Errorf("turns[%d].Number = %d, want %d (chronological order)", i, turn.Number, i)
			}
			if len(turn.Entries) != 2 {
				t.Fatalf("turns[%d] has %d entries, want 2", i, len(turn.Entries))
			}
			if got := turn.Entries[0]; got.Role != chat.RoleUser || got.Content != fmt.Sprintf("q%d", i) {
				t.Errorf("turns[%d] user half = %+v", i, got)
			}
			if got := turn.Entries[1]; got.Role != chat.RoleAssistant || got.Content != fmt.Sprintf("a%d", i) {
				t.Errorf("turns[%d] assistant half = %+v", i, got)
			}
		}
	})

	t.Run("load respects limit keeping newest", func(t *testing.T) {
		turns, err := ts.LoadTurns(ctx, "u2", "s2", 2)
		if err != nil {
			t.Fatalf("LoadTurns() error = %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("len(turns) = %d, want 2", len(turns))
		}
		if turns[0].Number != 2 || turns[1].Number != 3 {
			t.Errorf("turn numbers = %d, %d; want 2, 3", turns[0].Number, turns[1].Number)
		}
	})

	t.Run("duplicate turn number keeps newest exchange", func(t *testing.T) {
		// Long sessions pin the turn number once history hits its cap, so
		// the slot must hold the latest exchange, not the first.
		err := ts.AppendTurn(ctx, "u2", "s2", chat.Turn{
			Number: 0, UserText: "replay-q", AssistantText: "replay-a", Timestamp: now,
		})
		if err != nil {
			t.Fatalf("AppendTurn(replay) error = %v", err)
		}

		turns, err := ts.LoadTurns(ctx, "u2", "s2", 10)
		if err != nil {
			t.Fatalf("LoadTurns() error = %v", err)
		}
		if len(turns) != 4 {
			t.Errorf("len(turns) = %d, want 4 after replayed append", len(turns))
		}
		if got := turns[0].Entries[0].Content; got != "replay-q" {
			t.Errorf("turn 0 user half = %q, want replay-q", got)
		}
		if got := turns[0].Entries[1].Content; got != "replay-a" {
			t.Errorf("turn 0 assistant half = %q, want replay-a", got)
		}
	})

	t.Run("unparseable messages yield empty entries", func(t *testing.T) {
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO chat_turns (user_id, session_id, turn_number, messages) VALUES ('u3', 's3', 0, '{"oops": true}')`)
		if err != nil {
			t.Fatalf("inserting corrupt row: %v", err)
		}

		turns, err := ts.LoadTurns(ctx, "u3", "s3", 10)
		if err != nil {
			t.Fatalf("LoadTurns() error = %v", err)
		}
		if len(turns) != 1 {
			t.Fatalf("len(turns) = %d, want 1", len(turns))
		}
		if len(turns[0].Entries) != 0 {
			t.Errorf("corrupt turn has %d entries, want 0", len(turns[0].Entries))
		}
	})

	t.Run("empty session loads empty", func(t *testing.T) {
		turns, err := ts.LoadTurns(ctx, "nobody", "nothing", 10)
		if err != nil {
			t.Fatalf("LoadTurns() error = %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("len(turns) = %d, want 0", len(turns))
		}
	})
}

func TestProfilesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	profiles, err := NewProfiles(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewProfiles() error = %v", err)
	}

	t.Run("missing profile is zero value", func(t *testing.T) {
		got, err := profiles.UserProfile(ctx, "stranger")
		if err != nil {
			t.Fatalf("UserProfile() error = %v", err)
		}
		if got != (chat.Profile{}) {
			t.Errorf("UserProfile() = %+v, want zero profile", got)
		}
	})

	t.Run("upsert round trip", func(t *testing.T) {
		want := chat.Profile{DisplayName: "Mira", AgeRange: "25-34", Occupation: "nurse"}
		if err := profiles.Upsert(ctx, "u1", want); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		got, err := profiles.UserProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("UserProfile() error = %v", err)
		}
		if got != want {
			t.Errorf("UserProfile() = %+v, want %+v", got, want)
		}

		// Second upsert replaces fields, empty ones included.
		want2 := chat.Profile{DisplayName: "Mira", Occupation: "teacher"}
		if err := profiles.Upsert(ctx, "u1", want2); err != nil {
			t.Fatalf("Upsert(update) error = %v", err)
		}
		got, err = profiles.UserProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("UserProfile() error = %v", err)
		}
		if got != want2 {
			t.Errorf("UserProfile() = %+v, want %+v", got, want2)
		}
	})
}
