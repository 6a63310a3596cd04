package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/neo1202/cf-ai-voice-email/internal/audio"
	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/llm"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/session"
	"github.com/neo1202/cf-ai-voice-email/internal/stt"
	"github.com/neo1202/cf-ai-voice-email/internal/tts"
)

// Emitter delivers pipeline events back to the connected client
type Emitter interface {
	EmitStatus(text string)
	EmitTranscript(text string)
	EmitAssistant(text string, audio []byte)
}

// Runner drives one conversation turn through the full pipeline:
// transcription, streamed generation, per-segment synthesis, commit.
type Runner struct {
	cfg         *config.Config
	transcriber stt.Transcriber
	generator   llm.Generator
	synthesizer tts.Synthesizer
	sessions    *session.Manager
}

// NewRunner creates a turn runner
func NewRunner(cfg *config.Config, transcriber stt.Transcriber, generator llm.Generator, synthesizer tts.Synthesizer, sessions *session.Manager) *Runner {
	return &Runner{
		cfg:         cfg,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		sessions:    sessions,
	}
}

// RunTurn processes one captured utterance end to end. It returns
// session.ErrTurnActive without side effects if a turn is already running.
// A failed turn emits an error status and persists nothing.
func (r *Runner) RunTurn(ctx context.Context, sess *session.Session, wavAudio []byte, emit Emitter) error {
	// An utterance with no samples starts no turn: nothing is emitted and
	// the transcriber is never called with an empty payload.
	if samples, _, err := audio.DecodeWAVPCM16(wavAudio); err != nil || len(samples) == 0 {
		log := observability.WithSession(sess.ID)
		log.Debug().
			Int("bytes", len(wavAudio)).
			Msg("Ignoring empty utterance")
		return nil
	}

	turnCtx, err := sess.BeginTurn(ctx)
	if err != nil {
		return err
	}
	defer sess.EndTurn()

	log := observability.WithTurn(sess.ID, uuid.NewString())
	metrics := observability.NewTurnMetrics()
	observability.RecordAudioBytes("in", int64(len(wavAudio)))

	metrics.RecordTranscriptionStart()
	transcript, err := r.transcriber.Transcribe(turnCtx, wavAudio)
	metrics.RecordTranscriptionEnd()
	if err != nil {
		log.Error().Err(err).Msg("Transcription failed")
		metrics.RecordTurnEnd(false)
		emit.EmitStatus(fmt.Sprintf("Error: %v", err))
		return err
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		// Silence or noise, nothing to answer
		log.Debug().Msg("Empty transcript, skipping turn")
		metrics.RecordTurnEnd(true)
		return nil
	}

	log.Info().Str("transcript", transcript).Msg("Utterance transcribed")
	emit.EmitTranscript(transcript)

	messages := r.buildMessages(sess, transcript)

	queue := NewSynthQueue(turnCtx, r.synthesizer, r.cfg.SynthesisConcurrency, func(text string, audio []byte) {
		observability.RecordAudioBytes("out", int64(len(audio)))
		emit.EmitAssistant(text, audio)
	})

	var reply strings.Builder
	segmenter := NewSegmenter(r.cfg.SegmentMaxChars, func(segment, reason string) {
		if reply.Len() > 0 {
			reply.WriteString(" ")
		}
		reply.WriteString(segment)
		emit.EmitStatus("Speaking…")
		queue.Submit(segment)
	})

	metrics.RecordGenerationStart()
	err = r.generator.Stream(turnCtx, messages, func(delta string) error {
		segmenter.Push(delta)
		return nil
	})
	metrics.RecordGenerationEnd()

	if err != nil {
		// Drain whatever was already queued, then report the failure.
		// The partial exchange is not persisted.
		queue.Wait()
		metrics.RecordTurnEnd(false)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Turn cancelled")
			return err
		}
		log.Error().Err(err).Msg("Generation failed")
		emit.EmitStatus(fmt.Sprintf("Error: %v", err))
		return err
	}

	segmenter.Finish()
	queue.Wait()

	if err := turnCtx.Err(); err != nil {
		// Cleared mid-turn, do not persist
		log.Info().Msg("Turn cancelled before commit")
		metrics.RecordTurnEnd(false)
		return err
	}

	if err := r.sessions.CommitTurn(ctx, sess, transcript, reply.String()); err != nil {
		log.Error().Err(err).Msg("Failed to persist turn")
		metrics.RecordTurnEnd(false)
		emit.EmitStatus(fmt.Sprintf("Error: %v", err))
		return err
	}

	emit.EmitStatus("Idle")
	metrics.RecordTurnEnd(true)
	log.Info().Int("reply_chars", reply.Len()).Msg("Turn completed")
	return nil
}

// buildMessages assembles the model prompt: system instruction, prior
// history, then the new user utterance
func (r *Runner) buildMessages(sess *session.Session, transcript string) []llm.Message {
	history := sess.History()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: r.cfg.SystemInstruction})
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: transcript})
	return messages
}
