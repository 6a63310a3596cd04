package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neo1202/cf-ai-voice-email/internal/audio"
	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/protocol"
	"github.com/neo1202/cf-ai-voice-email/internal/resilience"
)

// CaptureSource provides microphone PCM frames. Start blocks until the
// source is ready to deliver audio or the context expires.
type CaptureSource interface {
	Start(ctx context.Context) (<-chan []int16, error)
	Close() error
}

// Events receives conversation updates for display. Nil callbacks are skipped.
type Events struct {
	OnStatus     func(text string)
	OnTranscript func(text string)
	OnAssistant  func(text string)
}

// Controller wires capture, transport, and playback into a running
// voice conversation. One controller manages one session identity.
type Controller struct {
	cfg     *config.ClientConfig
	capture CaptureSource
	events  Events

	playback *PlaybackQueue

	mu          sync.Mutex
	ws          *websocket.Conn
	writeMu     sync.Mutex
	sessionID   string
	sessionFile string
	loopCancel  context.CancelFunc
	loops       sync.WaitGroup
	running     bool
	closed      bool
}

// NewController creates a controller. The player drives the playback queue.
func NewController(cfg *config.ClientConfig, capture CaptureSource, player Player, events Events) *Controller {
	return &Controller{
		cfg:      cfg,
		capture:  capture,
		events:   events,
		playback: NewPlaybackQueue(player),
	}
}

// Start loads the persisted session identity, connects, and begins
// capturing. It returns once the conversation is armed.
func (c *Controller) Start(ctx context.Context) error {
	path, err := SessionFilePath(c.cfg.SessionFile)
	if err != nil {
		return err
	}
	id, err := LoadOrCreateSessionID(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionFile = path
	c.sessionID = id
	c.mu.Unlock()

	return c.connectAndArm(ctx)
}

// SessionID returns the current session identity
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Speaking reports whether assistant audio is queued or playing
func (c *Controller) Speaking() bool {
	return c.playback.Speaking()
}

func (c *Controller) connectAndArm(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("controller is closed")
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	log := observability.WithSession(sessionID)

	captureCtx, cancelWait := context.WithTimeout(ctx, time.Duration(c.cfg.VADLoadTimeoutMS)*time.Millisecond)
	frames, err := c.capture.Start(captureCtx)
	cancelWait()
	if err != nil {
		return fmt.Errorf("capture source failed to start: %w", err)
	}

	url := c.cfg.ServerURL + "/chat/" + sessionID
	var ws *websocket.Conn
	err = resilience.Reconnect(ctx, func() error {
		conn, _, dialErr := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if dialErr != nil {
			return dialErr
		}
		ws = conn
		return nil
	}, resilience.DefaultReconnectConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})

	c.mu.Lock()
	c.ws = ws
	c.loopCancel = cancel
	c.running = true
	c.mu.Unlock()

	c.loops.Add(1)
	go c.readLoop(loopCtx, ws, ready)

	// The server sends a ready status once history is loaded. If it never
	// arrives we proceed anyway; the session still works, just without the
	// explicit confirmation.
	select {
	case <-ready:
		log.Info().Msg("Session ready")
	case <-time.After(time.Duration(c.cfg.ReadyTimeoutMS) * time.Millisecond):
		log.Warn().Msg("Timed out waiting for ready status, proceeding")
	case <-ctx.Done():
		return ctx.Err()
	}

	// Capture is armed only after the ready wait resolves, so speech that
	// starts during the handshake is never shipped before the session is up.
	c.loops.Add(1)
	go c.captureLoop(loopCtx, frames)
	return nil
}

func (c *Controller) readLoop(ctx context.Context, ws *websocket.Conn, ready chan struct{}) {
	defer c.loops.Done()
	log := observability.GetLogger()

	readyClosed := false
	for {
		if ctx.Err() != nil {
			return
		}
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("Connection read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed frame from server")
			continue
		}

		switch e := ev.(type) {
		case protocol.StatusEvent:
			if e.Text == "ready" && !readyClosed {
				close(ready)
				readyClosed = true
			}
			c.fireStatus(e.Text)
		case protocol.TranscriptEvent:
			c.fireTranscript(e.Text)
		case protocol.AssistantEvent:
			c.fireAssistant(e.Text)
			if len(e.Audio) > 0 {
				log.Debug().
					Str("container", audio.DetectFormat(e.Audio).MIME()).
					Int("bytes", len(e.Audio)).
					Msg("Queued assistant clip")
				c.playback.Enqueue(e.Audio)
			}
		case protocol.CommandEvent:
			log.Warn().Str("cmd", e.Data).Msg("Ignoring command event from server")
		}
	}
}

func (c *Controller) captureLoop(ctx context.Context, frames <-chan []int16) {
	defer c.loops.Done()
	log := observability.GetLogger()

	vad := audio.NewVADDetector(&audio.VADConfig{
		EnergyThreshold: c.cfg.VADEnergyThreshold,
		SilenceFrames:   c.cfg.VADSilenceFrames,
	})

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			started, utterance := vad.ProcessFrame(frame)
			if started {
				log.Debug().Msg("Speech detected")
			}
			if len(utterance) == 0 {
				continue
			}
			if err := c.sendUtterance(utterance); err != nil {
				log.Warn().Err(err).Msg("Failed to send utterance")
			}
		}
	}
}

func (c *Controller) sendUtterance(samples []int16) error {
	wav := audio.EncodeWAVPCM16(samples, audio.SampleRate)

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteMessage(websocket.BinaryMessage, wav)
}

// ClearHistory asks the server to forget the conversation. The session
// identity is kept; use NewConversation to also rotate it.
func (c *Controller) ClearHistory() error {
	frame, err := protocol.Encode(protocol.CommandEvent{Data: protocol.CommandClear})
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, frame)
}

// NewConversation tears down the current session, rotates the identity,
// and reconnects with a clean slate. Safe to call repeatedly.
func (c *Controller) NewConversation(ctx context.Context) error {
	c.teardown()

	c.mu.Lock()
	path := c.sessionFile
	c.mu.Unlock()

	id, err := RotateSessionID(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()

	return c.connectAndArm(ctx)
}

// teardown stops the loops, drops queued playback, and closes the transport
func (c *Controller) teardown() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.loopCancel
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		ws.Close()
	}
	c.loops.Wait()
	c.playback.Clear()
}

// Close releases every resource the controller holds
func (c *Controller) Close() error {
	c.teardown()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.playback.Close()
	return c.capture.Close()
}

func (c *Controller) fireStatus(text string) {
	if c.events.OnStatus != nil {
		c.events.OnStatus(text)
	}
}

func (c *Controller) fireTranscript(text string) {
	if c.events.OnTranscript != nil {
		c.events.OnTranscript(text)
	}
}

func (c *Controller) fireAssistant(text string) {
	if c.events.OnAssistant != nil {
		c.events.OnAssistant(text)
	}
}
