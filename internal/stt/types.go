package stt

import (
	"context"
	"fmt"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
)

// Transcriber converts a complete spoken utterance into text.
// The audio payload is a 16kHz mono PCM16 WAV clip.
type Transcriber interface {
	Transcribe(ctx context.Context, wavAudio []byte) (string, error)
}

// NewTranscriber creates the transcriber selected by STT_PROVIDER
func NewTranscriber(cfg *config.Config) (Transcriber, error) {
	switch cfg.STTProvider {
	case "deepgram":
		return NewDeepgramTranscriber(cfg), nil
	case "workersai":
		return NewWorkersAITranscriber(cfg), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}
