package session

import (
	"context"
	"errors"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store persists conversation histories keyed by session ID.
// Load returns an empty slice (not an error) for an unknown session.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]Message, error)
	Save(ctx context.Context, sessionID string, history []Message) error
	Delete(ctx context.Context, sessionID string) error
}

// ErrTurnActive is returned when an utterance arrives while a previous
// turn is still being processed
var ErrTurnActive = errors.New("a turn is already in progress")
