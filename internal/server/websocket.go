package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/pipeline"
	"github.com/neo1202/cf-ai-voice-email/internal/protocol"
	"github.com/neo1202/cf-ai-voice-email/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Utterance clips are bounded; 10MB leaves generous headroom
	maxMessageSize = 10 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /chat/{id} requests and runs the conversation loop
// for each connection
type Handler struct {
	sessions *session.Manager
	runner   *pipeline.Runner
}

// NewHandler creates the websocket conversation handler
func NewHandler(sessions *session.Manager, runner *pipeline.Runner) *Handler {
	return &Handler{sessions: sessions, runner: runner}
}

// conn wraps a websocket connection with a single-writer outbound channel.
// All frames go through send; gorilla connections do not allow concurrent
// writers.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// emit encodes an event and queues it for the writer goroutine
func (c *conn) emit(ev protocol.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		log := observability.GetLogger()
		log.Error().Err(err).Msg("Failed to encode event")
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

// EmitStatus implements pipeline.Emitter
func (c *conn) EmitStatus(text string) {
	c.emit(protocol.StatusEvent{Text: text})
}

// EmitTranscript implements pipeline.Emitter
func (c *conn) EmitTranscript(text string) {
	c.emit(protocol.TranscriptEvent{Text: text})
}

// EmitAssistant implements pipeline.Emitter
func (c *conn) EmitAssistant(text string, audio []byte) {
	c.emit(protocol.AssistantEvent{Text: text, Audio: audio})
}

// ServeHTTP upgrades the connection and runs the session loop
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log := observability.GetLogger()
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	log := observability.WithSession(sessionID)
	log.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection established")

	c := &conn{
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	go c.writePump()

	// The history load is synchronous; ready is only announced once the
	// session can actually answer with full context.
	sess, err := h.sessions.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load session")
		c.EmitStatus("Error: failed to load conversation history")
		c.close()
		return
	}
	// A turn that outlives its connection is abandoned: cancel it and
	// wait for the runner to unwind before dropping the session, so it
	// can never commit over history a reconnected client is building on.
	defer func() {
		sess.Abort()
		h.sessions.Release(sessionID)
	}()

	c.EmitStatus("ready")

	h.readLoop(c, sess, log)
	c.close()
	log.Info().Msg("WebSocket connection closed")
}

func (h *Handler) readLoop(c *conn, sess *session.Session, log zerolog.Logger) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Unexpected connection close")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			h.handleUtterance(c, sess, data, log)
		case websocket.TextMessage:
			h.handleCommand(c, sess, data, log)
		}
	}
}

// handleUtterance runs a turn in the background so command frames are
// still read while the pipeline is working
func (h *Handler) handleUtterance(c *conn, sess *session.Session, audio []byte, log zerolog.Logger) {
	log.Debug().Int("bytes", len(audio)).Msg("Received utterance audio")

	go func() {
		err := h.runner.RunTurn(context.Background(), sess, audio, c)
		if err == session.ErrTurnActive {
			c.EmitStatus("Busy: still responding to the previous utterance")
		}
	}()
}

func (h *Handler) handleCommand(c *conn, sess *session.Session, data []byte, log zerolog.Logger) {
	ev, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed text frame")
		return
	}

	cmd, ok := ev.(protocol.CommandEvent)
	if !ok {
		log.Warn().Str("frame", string(data)).Msg("Ignoring unexpected event from client")
		return
	}

	switch cmd.Data {
	case protocol.CommandClear:
		if err := h.sessions.Clear(context.Background(), sess); err != nil {
			log.Error().Err(err).Msg("Failed to clear history")
			c.EmitStatus("Error: failed to clear history")
			return
		}
		log.Info().Msg("Conversation history cleared")
		c.EmitStatus("History cleared")
	default:
		log.Warn().Str("cmd", cmd.Data).Msg("Ignoring unknown command")
	}
}

// writePump is the single writer for the connection
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
