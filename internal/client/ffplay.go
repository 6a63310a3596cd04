package client

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/neo1202/cf-ai-voice-email/internal/audio"
)

// FFPlayPlayer renders clips by piping them to ffplay. The container is
// sniffed from the payload and passed as a demuxer hint so ffplay never
// has to guess on a pipe it cannot seek.
type FFPlayPlayer struct {
	path string
}

// NewFFPlayPlayer creates a player using the given ffplay binary path
func NewFFPlayPlayer(path string) *FFPlayPlayer {
	if path == "" {
		path = "ffplay"
	}
	return &FFPlayPlayer{path: path}
}

// demuxerName maps a sniffed container to the ffplay -f demuxer name
func demuxerName(f audio.Format) string {
	if f == audio.FormatWAV {
		return "wav"
	}
	return "mp3"
}

// Play pipes the clip to ffplay and waits for playback to finish
func (p *FFPlayPlayer) Play(ctx context.Context, clip []byte) error {
	cmd := exec.CommandContext(ctx, p.path,
		"-autoexit",
		"-nodisp",
		"-loglevel", "quiet",
		"-f", demuxerName(audio.DetectFormat(clip)),
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(clip)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffplay failed: %w", err)
	}
	return nil
}
