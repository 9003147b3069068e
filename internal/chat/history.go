package chat

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/stressease/stressease/internal/log"
)

// HistoryLoader reconstructs conversational history from the turn store.
//
// History is always loaded fresh: the cache never trusts an in-memory copy,
// only the chain handle survives between requests.
type HistoryLoader struct {
	store       TurnStore
	maxMessages int
	logger      log.Logger
}

// NewHistoryLoader creates a loader that returns at most maxMessages
// messages per call. maxMessages <= 0 falls back to
// DefaultMaxHistoryMessages.
func NewHistoryLoader(store TurnStore, maxMessages int, logger log.Logger) *HistoryLoader {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxHistoryMessages
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &HistoryLoader{
		store:       store,
		maxMessages: maxMessages,
		logger:      logger,
	}
}

// Load returns the session's most recent history, oldest to newest, capped
// at the loader's message limit. Each well-formed turn expands to a user
// message followed by an assistant message.
//
// The load is partial-tolerant: a half with an unknown role marker or empty
// content is dropped, and a record with neither half well-formed is skipped
// entirely. Only a store failure aborts the load.
func (l *HistoryLoader) Load(ctx context.Context, userID, sessionID string) ([]*ai.Message, error) {
	raw, err := l.store.LoadTurns(ctx, userID, sessionID, l.maxMessages)
	if err != nil {
		return nil, fmt.Errorf("loading turns for session %s: %w", sessionID, err)
	}

	messages := make([]*ai.Message, 0, len(raw)*2)
	for _, turn := range raw {
		expanded := expandTurn(turn)
		if len(expanded) == 0 {
			l.logger.Warn("skipping malformed turn record",
				"session_id", sessionID,
				"turn_number", turn.Number,
			)
			continue
		}
		messages = append(messages, expanded...)
	}

	// Expansion can overshoot the cap by one when the newest turn's pair
	// straddles the limit; keep the most recent messages.
	if len(messages) > l.maxMessages {
		messages = messages[len(messages)-l.maxMessages:]
	}
	return messages, nil
}

// expandTurn maps a raw turn record onto history messages, dropping halves
// that are missing, empty, or carry an unrecognized role marker.
func expandTurn(turn RawTurn) []*ai.Message {
	var messages []*ai.Message
	for _, e := range turn.Entries {
		if e.Content == "" {
			continue
		}
		switch e.Role {
		case RoleUser:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(e.Content)))
		case RoleAssistant, "ai":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(e.Content)))
		default:
			// Unknown role markers are dropped, not fatal.
		}
	}
	return messages
}
