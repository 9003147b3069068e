package chat

import (
	"context"
	"errors"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Defaults for the session manager's configuration surface.
const (
	// DefaultMaxSessionsPerUser caps a user's concurrently active sessions.
	DefaultMaxSessionsPerUser = 2

	// DefaultMaxHistoryMessages caps the number of history messages loaded
	// when resuming a session.
	DefaultMaxHistoryMessages = 25

	// DefaultMaxMessageLength is the maximum user message length accepted by
	// the HTTP layer.
	DefaultMaxMessageLength = 1000
)

// Role markers as stored in turn records. The store boundary maps these onto
// the closed ai.Role enum; anything unrecognized is dropped during history
// reconstruction rather than failing the load.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors for session operations.
var (
	// ErrServiceUnavailable indicates the chain factory or the turn store
	// failed on the synchronous request path. No partial session is left
	// cached when this is returned.
	ErrServiceUnavailable = errors.New("chat service unavailable")

	// ErrSessionNotFound indicates the session is not resident in the cache.
	ErrSessionNotFound = errors.New("session not found")
)

// Turn is one completed user/assistant exchange, durably recorded with a
// monotonic per-session turn number.
type Turn struct {
	Number        int
	UserText      string
	AssistantText string
	Timestamp     time.Time
}

// RawEntry is one half of a stored turn before role mapping. Role carries
// whatever marker the store recorded; Content may be empty for a missing or
// malformed half.
type RawEntry struct {
	Role    string
	Content string
}

// RawTurn is a turn record as returned by the store, before reconstruction
// into history messages.
type RawTurn struct {
	Number  int
	Entries []RawEntry
}

// TurnStore is the durable append-only log of conversation turns and session
// metadata. Implemented by the PostgreSQL store; defined here because the
// session manager is its consumer.
type TurnStore interface {
	AppendTurn(ctx context.Context, userID, sessionID string, turn Turn) error
	LoadTurns(ctx context.Context, userID, sessionID string, limit int) ([]RawTurn, error)
	CreateSessionMetadata(ctx context.Context, userID, sessionID string, createdAt time.Time) error
	UpdateSessionActivity(ctx context.Context, userID, sessionID string, lastActivity time.Time) error
	MarkSessionEnded(ctx context.Context, userID, sessionID string) error
}

// Chain is a stateless reply generator bound to a user's long-lived context.
// History is passed explicitly on every call; the chain holds no
// conversational state of its own.
type Chain interface {
	Generate(ctx context.Context, userText string, history []*ai.Message) (string, error)
}

// ChainFactory builds chains. Building is expensive (it gathers the user's
// profile and mood context), so the manager caches the handle per session.
type ChainFactory interface {
	Build(ctx context.Context, userID string) (Chain, error)
}
