package store

import (
	"context"
	"sync"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/session"
)

type memoryEntry struct {
	history   []session.Message
	expiresAt time.Time
}

// MemoryStore keeps conversation histories in process memory.
// Suitable for development and tests; histories vanish on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
}

// NewMemoryStore creates an in-memory history store.
// A zero ttl means entries never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
	}
}

// Load returns the stored history, or an empty slice for an unknown session
func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]session.Message, error) {
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()

	if !ok {
		return []session.Message{}, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, sessionID)
		m.mu.Unlock()
		return []session.Message{}, nil
	}

	// Copy so callers cannot mutate stored state
	out := make([]session.Message, len(entry.history))
	copy(out, entry.history)
	return out, nil
}

// Save replaces the stored history for the session
func (m *MemoryStore) Save(_ context.Context, sessionID string, history []session.Message) error {
	stored := make([]session.Message, len(history))
	copy(stored, history)

	entry := &memoryEntry{history: stored}
	if m.ttl > 0 {
		entry.expiresAt = time.Now().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[sessionID] = entry
	m.mu.Unlock()
	return nil
}

// Delete removes the session's history. Deleting an absent session is a no-op.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.mu.Unlock()
	return nil
}
