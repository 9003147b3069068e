package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/stressease/stressease/internal/log"
)

// ManagerConfig contains all required parameters for the session manager.
type ManagerConfig struct {
	Store  TurnStore    // Required
	Chains ChainFactory // Required
	Logger log.Logger

	// MaxSessionsPerUser and MaxHistoryMessages fall back to the package
	// defaults when zero.
	MaxSessionsPerUser int
	MaxHistoryMessages int

	// Writer pool sizing; zero values use the writer defaults.
	WriterWorkers   int
	WriterQueueSize int
}

func (cfg ManagerConfig) validate() error {
	if cfg.Store == nil {
		return errors.New("turn store is required")
	}
	if cfg.Chains == nil {
		return errors.New("chain factory is required")
	}
	return nil
}

// Manager orchestrates session lifecycle: create, resume, record, evict,
// terminate. It is the only component the messaging endpoint talks to.
//
// Manager is safe for concurrent use. Per-user mutations are serialized by
// the cache; everything else is read-only after construction.
type Manager struct {
	cache  *Cache
	store  TurnStore
	chains ChainFactory
	loader *HistoryLoader
	writer *Writer
	logger log.Logger

	now func() time.Time
}

// NewManager creates a session manager and starts its write-behind pool.
// Call Close during shutdown to drain pending persistence jobs.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Manager{
		cache:  NewCache(cfg.MaxSessionsPerUser, logger),
		store:  cfg.Store,
		chains: cfg.Chains,
		loader: NewHistoryLoader(cfg.Store, cfg.MaxHistoryMessages, logger),
		writer: NewWriter(cfg.WriterWorkers, cfg.WriterQueueSize, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Resolution is what Resolve hands back to the messaging endpoint: a session
// id (fresh or confirmed), the reply chain, and the reconstructed history to
// pass into it.
type Resolution struct {
	SessionID    string
	Chain        Chain
	History      []*ai.Message
	MessageCount int
}

// Resolve locates or creates the session for an inbound message.
//
// With an empty sessionID a new session is created: a fresh id is generated,
// the user's oldest session is evicted if the user is at capacity, and a new
// chain is built from the user's profile and mood context. With a sessionID,
// history is reloaded fresh from the store; the cached chain is reused when
// resident, rebuilt otherwise (cold resume).
//
// Failures of the chain factory or the store on this path surface as
// ErrServiceUnavailable and leave no partial session cached. An empty
// history is not an error.
func (m *Manager) Resolve(ctx context.Context, userID, sessionID string) (*Resolution, error) {
	if sessionID == "" {
		return m.createSession(ctx, userID)
	}
	return m.resumeSession(ctx, userID, sessionID)
}

func (m *Manager) createSession(ctx context.Context, userID string) (*Resolution, error) {
	sessionID := uuid.NewString()

	// Build the chain before touching the cache so a factory failure leaves
	// no partial session behind.
	chain, err := m.chains.Build(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: building chain: %w", ErrServiceUnavailable, err)
	}

	now := m.now()
	if evicted := m.cache.Put(userID, sessionID, chain, 0, now); evicted != "" {
		m.endEvicted(userID, evicted)
	}

	m.writer.Enqueue(Job{
		Kind: "create_session_metadata",
		Fn: func(ctx context.Context) error {
			return m.store.CreateSessionMetadata(ctx, userID, sessionID, now)
		},
	})

	m.logger.Info("created chat session", "user_id", userID, "session_id", sessionID)
	return &Resolution{SessionID: sessionID, Chain: chain, History: nil}, nil
}

func (m *Manager) resumeSession(ctx context.Context, userID, sessionID string) (*Resolution, error) {
	history, err := m.loader.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	if chain, ok := m.cache.Get(userID, sessionID); ok {
		count, _ := m.cache.MessageCount(userID, sessionID)
		return &Resolution{SessionID: sessionID, Chain: chain, History: history, MessageCount: count}, nil
	}

	// Cold resume: the session's turns are durable but the chain handle was
	// lost with the cache entry. Rebuild and re-admit.
	chain, err := m.chains.Build(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: rebuilding chain: %w", ErrServiceUnavailable, err)
	}

	count := len(history) / 2
	if evicted := m.cache.Put(userID, sessionID, chain, count, m.now()); evicted != "" {
		m.endEvicted(userID, evicted)
	}

	m.logger.Debug("rebuilt chain on cold resume",
		"user_id", userID,
		"session_id", sessionID,
		"history_len", len(history),
	)
	return &Resolution{SessionID: sessionID, Chain: chain, History: history, MessageCount: count}, nil
}

// RecordTurn applies a completed exchange: the turn append and the activity
// update are mirrored into the store by the write-behind pool, and the cache
// entry is touched. It never fails visibly — persistence here is best
// effort by design.
func (m *Manager) RecordTurn(userID, sessionID, userText, assistantText string, turnNumber int) {
	now := m.now()

	m.writer.Enqueue(Job{
		Kind: "append_turn",
		Fn: func(ctx context.Context) error {
			return m.store.AppendTurn(ctx, userID, sessionID, Turn{
				Number:        turnNumber,
				UserText:      userText,
				AssistantText: assistantText,
				Timestamp:     now,
			})
		},
	})
	m.writer.Enqueue(Job{
		Kind: "update_session_activity",
		Fn: func(ctx context.Context) error {
			return m.store.UpdateSessionActivity(ctx, userID, sessionID, now)
		},
	})

	m.cache.Touch(userID, sessionID, now)
}

// EndSession explicitly terminates a session: the cache entry is removed and
// the durable record is marked ended (best effort). Ended is terminal; the
// session's turns remain in the store permanently.
func (m *Manager) EndSession(userID, sessionID string) {
	m.cache.Remove(userID, sessionID)
	m.writer.Enqueue(Job{
		Kind: "mark_session_ended",
		Fn: func(ctx context.Context) error {
			return m.store.MarkSessionEnded(ctx, userID, sessionID)
		},
	})
	m.logger.Info("ended chat session", "user_id", userID, "session_id", sessionID)
}

// endEvicted marks a capacity-evicted session ended in the store. The cache
// entry is already gone; the durable write is fire and forget.
func (m *Manager) endEvicted(userID, sessionID string) {
	m.writer.Enqueue(Job{
		Kind: "mark_session_ended",
		Fn: func(ctx context.Context) error {
			return m.store.MarkSessionEnded(ctx, userID, sessionID)
		},
	})
}

// Sessions reports how many of the user's sessions are resident in the
// cache. Used by the readiness endpoint and tests.
func (m *Manager) Sessions(userID string) int {
	return m.cache.Len(userID)
}

// MessageCount reports the cached message count for a session.
func (m *Manager) MessageCount(userID, sessionID string) (int, bool) {
	return m.cache.MessageCount(userID, sessionID)
}

// Close drains the write-behind pool. Call once during shutdown, after the
// HTTP server has stopped accepting requests.
func (m *Manager) Close() {
	m.writer.Close()
}
