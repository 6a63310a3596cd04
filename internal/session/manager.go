package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

// Manager tracks live sessions and keeps their histories durable.
// The store load in GetOrCreate is synchronous so a session is never
// announced as ready with a partially loaded history.
type Manager struct {
	store Store

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the given store
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the live session for the ID, loading its durable
// history first if the session is not yet resident.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	history, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another connection may have loaded it while we were reading the store
	if sess, ok := m.sessions[sessionID]; ok {
		return sess, nil
	}

	sess := &Session{ID: sessionID, history: history}
	m.sessions[sessionID] = sess
	observability.RecordSessionOpen()
	return sess, nil
}

// CommitTurn appends the completed exchange to the session history and
// persists the whole history. Nothing is persisted for a failed turn.
func (m *Manager) CommitTurn(ctx context.Context, sess *Session, userText, assistantText string) error {
	sess.Append(
		Message{Role: RoleUser, Content: userText},
		Message{Role: RoleAssistant, Content: assistantText},
	)

	if err := m.store.Save(ctx, sess.ID, sess.History()); err != nil {
		return fmt.Errorf("failed to persist session history: %w", err)
	}
	return nil
}

// Clear aborts any in-flight turn, resets the in-memory history, and
// deletes the durable record. Clearing an empty session succeeds.
func (m *Manager) Clear(ctx context.Context, sess *Session) error {
	sess.abortTurnAndReset()

	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to delete session history: %w", err)
	}
	return nil
}

// Release drops the live session once its last connection closes.
// The durable history survives for the next connection to load. A
// session whose turn is still unwinding stays resident so a racing
// reconnect reuses the same instance instead of forking a stale copy
// of the history.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	if sess.TurnActive() {
		return
	}
	delete(m.sessions, sessionID)
	observability.RecordSessionClose()
}
