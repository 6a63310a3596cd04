package tts

import "context"

// Synthesizer converts a text segment into spoken audio.
// The returned bytes are a complete audio clip; callers sniff the container
// format before playback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
