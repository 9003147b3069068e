// Package store persists chat sessions, turns, and user profiles in
// PostgreSQL. It implements the narrow interfaces the chat package defines
// for its collaborators.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Turn numbers derive from the capped loaded history, so a session that
// outgrows the history window keeps producing the same number; the upsert
// keeps the most recent exchange for it rather than the oldest.
const appendTurnSQL = `INSERT INTO chat_turns (user_id, session_id, turn_number, messages, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, session_id, turn_number) DO UPDATE
	SET messages = EXCLUDED.messages, created_at = EXCLUDED.created_at`

const loadTurnsSQL = `SELECT turn_number, messages
	FROM chat_turns
	WHERE user_id = $1 AND session_id = $2
	ORDER BY turn_number DESC
	LIMIT $3`

const createSessionSQL = `INSERT INTO chat_sessions (user_id, session_id, status, created_at, last_activity)
	VALUES ($1, $2, 'active', $3, $3)
	ON CONFLICT (user_id, session_id) DO NOTHING`

const updateActivitySQL = `UPDATE chat_sessions
	SET last_activity = $3
	WHERE user_id = $1 AND session_id = $2 AND status = 'active'`

const markEndedSQL = `UPDATE chat_sessions
	SET status = 'ended'
	WHERE user_id = $1 AND session_id = $2`

// turnMessage is the JSONB wire shape of one half of a stored turn.
type turnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnStore is the PostgreSQL-backed turn log and session metadata store.
//
// TurnStore is safe for concurrent use by multiple goroutines.
type TurnStore struct {
	db     querier
	logger log.Logger
}

// NewTurnStore creates a TurnStore. db is typically a *pgxpool.Pool.
func NewTurnStore(db querier, logger log.Logger) (*TurnStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &TurnStore{db: db, logger: logger}, nil
}

// AppendTurn records one completed exchange. A replayed turn number replaces
// the stored exchange, so the newest write for a slot always survives.
func (s *TurnStore) AppendTurn(ctx context.Context, userID, sessionID string, turn chat.Turn) error {
	messages, err := json.Marshal([]turnMessage{
		{Role: chat.RoleUser, Content: turn.UserText},
		{Role: chat.RoleAssistant, Content: turn.AssistantText},
	})
	if err != nil {
		return fmt.Errorf("marshaling turn messages: %w", err)
	}

	if _, err := s.db.Exec(ctx, appendTurnSQL,
		userID, sessionID, turn.Number, messages, turn.Timestamp); err != nil {
		return fmt.Errorf("appending turn %d to session %s: %w", turn.Number, sessionID, err)
	}
	return nil
}

// LoadTurns returns the most recent limit turns for a session, oldest first.
// A row whose messages column cannot be parsed is returned with no entries;
// the history loader decides how to handle it.
func (s *TurnStore) LoadTurns(ctx context.Context, userID, sessionID string, limit int) ([]chat.RawTurn, error) {
	rows, err := s.db.Query(ctx, loadTurnsSQL, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading turns for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []chat.RawTurn
	for rows.Next() {
		var (
			number int
			raw    []byte
		)
		if err := rows.Scan(&number, &raw); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}

		var messages []turnMessage
		if err := json.Unmarshal(raw, &messages); err != nil {
			s.logger.Warn("unparseable turn record",
				"session_id", sessionID,
				"turn_number", number,
				"error", err,
			)
			turns = append(turns, chat.RawTurn{Number: number})
			continue
		}

		entries := make([]chat.RawEntry, 0, len(messages))
		for _, m := range messages {
			entries = append(entries, chat.RawEntry{Role: m.Role, Content: m.Content})
		}
		turns = append(turns, chat.RawTurn{Number: number, Entries: entries})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	// The query walks newest first to apply the limit; callers want
	// chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CreateSessionMetadata records a new session as active. Idempotent.
func (s *TurnStore) CreateSessionMetadata(ctx context.Context, userID, sessionID string, createdAt time.Time) error {
	if _, err := s.db.Exec(ctx, createSessionSQL, userID, sessionID, createdAt); err != nil {
		return fmt.Errorf("creating session %s: %w", sessionID, err)
	}
	return nil
}

// UpdateSessionActivity bumps a session's last-activity timestamp. Ended
// sessions are left untouched; ended is terminal.
func (s *TurnStore) UpdateSessionActivity(ctx context.Context, userID, sessionID string, lastActivity time.Time) error {
	if _, err := s.db.Exec(ctx, updateActivitySQL, userID, sessionID, lastActivity); err != nil {
		return fmt.Errorf("updating activity for session %s: %w", sessionID, err)
	}
	return nil
}

// MarkSessionEnded transitions a session to ended. The session's turns stay
// in the log permanently. Idempotent.
func (s *TurnStore) MarkSessionEnded(ctx context.Context, userID, sessionID string) error {
	if _, err := s.db.Exec(ctx, markEndedSQL, userID, sessionID); err != nil {
		return fmt.Errorf("marking session %s ended: %w", sessionID, err)
	}
	return nil
}
