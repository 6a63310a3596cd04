// Package protocol defines the text-frame envelope exchanged over a session
// connection. Binary frames carry raw utterance audio and have no envelope.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Event type tags carried in the "type" field of every text frame.
const (
	TypeStatus     = "status"
	TypeTranscript = "transcript"
	TypeAssistant  = "assistant"
	TypeCommand    = "cmd"
)

// CommandClear is the only data value currently defined for cmd events.
const CommandClear = "clear"

// Event is the closed set of text-frame payloads. The unexported marker keeps
// the variant set closed so event dispatch stays exhaustive at compile time.
type Event interface {
	eventType() string
}

// StatusEvent reports pipeline state transitions and errors to the client.
type StatusEvent struct {
	Text string
}

// TranscriptEvent carries the transcription of the user's utterance.
type TranscriptEvent struct {
	Text string
}

// AssistantEvent carries one synthesized segment: its text and encoded audio.
type AssistantEvent struct {
	Text  string
	Audio []byte
}

// CommandEvent carries a client control command.
type CommandEvent struct {
	Data string
}

func (StatusEvent) eventType() string     { return TypeStatus }
func (TranscriptEvent) eventType() string { return TypeTranscript }
func (AssistantEvent) eventType() string  { return TypeAssistant }
func (CommandEvent) eventType() string    { return TypeCommand }

// wireEvent is the JSON shape shared by all event kinds. Audio is base64 via
// encoding/json's []byte handling, matching the payloads the synthesis
// service hands back.
type wireEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Audio []byte `json:"audio,omitempty"`
	Data  string `json:"data,omitempty"`
}

// Encode serializes an event to its JSON wire form.
func Encode(ev Event) ([]byte, error) {
	var w wireEvent
	switch e := ev.(type) {
	case StatusEvent:
		w = wireEvent{Type: TypeStatus, Text: e.Text}
	case TranscriptEvent:
		w = wireEvent{Type: TypeTranscript, Text: e.Text}
	case AssistantEvent:
		w = wireEvent{Type: TypeAssistant, Text: e.Text, Audio: e.Audio}
	case CommandEvent:
		w = wireEvent{Type: TypeCommand, Data: e.Data}
	default:
		return nil, fmt.Errorf("protocol: unknown event %T", ev)
	}
	return json.Marshal(w)
}

// Decode parses a JSON text frame into its typed event.
// Unknown type tags are an error: the variant set is closed.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("protocol: malformed frame: %w", err)
	}

	switch w.Type {
	case TypeStatus:
		return StatusEvent{Text: w.Text}, nil
	case TypeTranscript:
		return TranscriptEvent{Text: w.Text}, nil
	case TypeAssistant:
		return AssistantEvent{Text: w.Text, Audio: w.Audio}, nil
	case TypeCommand:
		return CommandEvent{Data: w.Data}, nil
	case "":
		return nil, fmt.Errorf("protocol: frame missing type field")
	default:
		return nil, fmt.Errorf("protocol: unknown event type %q", w.Type)
	}
}
