package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/audio"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

// captureFrameSamples is 20ms at 16kHz
const captureFrameSamples = 320

// CommandCapture runs an external recorder (ffmpeg, arecord, sox) that
// writes 16kHz mono s16le PCM to stdout, and slices the stream into
// fixed-size frames. A ring buffer decouples the pipe reader from frame
// assembly so a slow consumer never backs up the recorder.
type CommandCapture struct {
	command string

	mu     sync.Mutex
	cmd    *exec.Cmd
	frames chan []int16
	closed bool
}

// NewCommandCapture creates a capture source from a shell-style command line
func NewCommandCapture(command string) *CommandCapture {
	return &CommandCapture{command: command}
}

// Start launches the recorder and blocks until the first PCM bytes arrive
// or the context expires
func (c *CommandCapture) Start(ctx context.Context) (<-chan []int16, error) {
	parts := strings.Fields(c.command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty capture command")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("capture source is closed")
	}
	// Re-arming reuses the running recorder
	if c.cmd != nil {
		frames := c.frames
		c.mu.Unlock()
		return frames, nil
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to start capture command: %w", err)
	}
	c.cmd = cmd
	c.mu.Unlock()

	log := observability.GetLogger()
	log.Info().Str("command", parts[0]).Msg("Capture source started")

	// Half a second of audio
	ring := audio.NewRingBuffer(captureFrameSamples * 2 * 25)
	firstBytes := make(chan struct{})

	go func() {
		var once sync.Once
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				once.Do(func() { close(firstBytes) })
				if written := ring.Write(buf[:n]); written < n {
					log.Debug().Int("dropped", n-written).Msg("Capture buffer overrun")
				}
			}
			if err != nil {
				if err != io.EOF {
					log.Warn().Err(err).Msg("Capture stream read failed")
				}
				return
			}
		}
	}()

	frames := make(chan []int16, 16)
	c.mu.Lock()
	c.frames = frames
	c.mu.Unlock()
	go func() {
		defer close(frames)
		raw := make([]byte, captureFrameSamples*2)
		filled := 0
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}

			filled += ring.Read(raw[filled:])
			if filled < len(raw) {
				continue
			}
			filled = 0

			frame := make([]int16, captureFrameSamples)
			for i := range frame {
				frame[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
			}
			select {
			case frames <- frame:
			default:
				// Consumer stalled, drop the frame rather than block capture
			}
		}
	}()

	select {
	case <-firstBytes:
		return frames, nil
	case <-ctx.Done():
		c.Close()
		return nil, fmt.Errorf("capture source produced no audio: %w", ctx.Err())
	}
}

// Close stops the recorder process
func (c *CommandCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
	}
	return nil
}
