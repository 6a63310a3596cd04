package llm

import "context"

// Role values for chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to the generation model
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a streamed model response for a conversation.
// Stream invokes onDelta for each text fragment as it arrives and returns
// once the stream finishes. A non-nil error from onDelta aborts the stream.
type Generator interface {
	Stream(ctx context.Context, messages []Message, onDelta func(delta string) error) error
}
