package chat

import (
	"sync"
	"time"

	"github.com/stressease/stressease/internal/log"
)

// entry is a cached session record. The chain handle is the only state worth
// caching: history is always reloaded fresh from the store on resume.
type entry struct {
	chain        Chain
	lastActivity time.Time
	messageCount int
}

// userSessions holds one user's resident sessions. Its mutex serializes all
// cache mutations for that user, so the capacity check and the eviction that
// follows are atomic with respect to concurrent requests from the same user.
type userSessions struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// Cache is the bounded per-user session cache.
//
// The outer lock only guards the user shard map itself; every per-user
// operation runs under that user's shard lock, so requests for different
// users never serialize against each other.
type Cache struct {
	maxSessions int
	logger      log.Logger

	mu    sync.RWMutex
	users map[string]*userSessions
}

// NewCache creates a session cache holding at most maxSessions active
// sessions per user. maxSessions <= 0 falls back to
// DefaultMaxSessionsPerUser.
func NewCache(maxSessions int, logger log.Logger) *Cache {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessionsPerUser
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Cache{
		maxSessions: maxSessions,
		logger:      logger,
		users:       make(map[string]*userSessions),
	}
}

// shard returns the user's session shard, creating it on first use.
func (c *Cache) shard(userID string) *userSessions {
	c.mu.RLock()
	us, ok := c.users[userID]
	c.mu.RUnlock()
	if ok {
		return us
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if us, ok = c.users[userID]; ok {
		return us
	}
	us = &userSessions{sessions: make(map[string]*entry)}
	c.users[userID] = us
	return us
}

// Get returns the cached chain handle for a session. It has no side effects;
// callers that complete an exchange must call Touch separately.
func (c *Cache) Get(userID, sessionID string) (Chain, bool) {
	us := c.shard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	e, ok := us.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return e.chain, true
}

// MessageCount reports the cached message count for a session.
func (c *Cache) MessageCount(userID, sessionID string) (int, bool) {
	us := c.shard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	e, ok := us.sessions[sessionID]
	if !ok {
		return 0, false
	}
	return e.messageCount, true
}

// Put inserts or overwrites a session record. If inserting a new session id
// would push the user over capacity, the eviction victim is removed first and
// its id returned so the caller can mark it ended in the store. Overwriting
// an existing id never evicts.
func (c *Cache) Put(userID, sessionID string, chain Chain, messageCount int, now time.Time) (evicted string) {
	us := c.shard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if _, exists := us.sessions[sessionID]; !exists && len(us.sessions) >= c.maxSessions {
		evicted = victim(us.sessions)
		if evicted != "" {
			delete(us.sessions, evicted)
			c.logger.Info("evicted oldest session",
				"user_id", userID,
				"session_id", evicted,
			)
		}
	}

	us.sessions[sessionID] = &entry{
		chain:        chain,
		lastActivity: now,
		messageCount: messageCount,
	}
	return evicted
}

// Touch updates last-activity and increments the message count for a
// resident session. Reports false if the session is not cached, in which
// case the caller must re-create it via Put.
func (c *Cache) Touch(userID, sessionID string, now time.Time) bool {
	us := c.shard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	e, ok := us.sessions[sessionID]
	if !ok {
		return false
	}
	e.lastActivity = now
	e.messageCount++
	return true
}

// Remove drops a session from the cache. Removing an absent session is a
// no-op.
func (c *Cache) Remove(userID, sessionID string) {
	us := c.shard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	delete(us.sessions, sessionID)
}

// Len reports the number of a user's resident sessions.
func (c *Cache) Len(userID string) int {
	us := c.shard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	return len(us.sessions)
}

// victim selects the eviction victim: the session with the minimum
// last-activity timestamp, ties broken by the lexicographically smaller id.
// Deterministic so that concurrent callers and tests agree on the outcome.
func victim(sessions map[string]*entry) string {
	var (
		victimID string
		oldest   time.Time
	)
	for id, e := range sessions {
		switch {
		case victimID == "":
			victimID, oldest = id, e.lastActivity
		case e.lastActivity.Before(oldest):
			victimID, oldest = id, e.lastActivity
		case e.lastActivity.Equal(oldest) && id < victimID:
			victimID = id
		}
	}
	return victimID
}
