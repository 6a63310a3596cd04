package stt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/resilience"
)

// DeepgramTranscriber implements Transcriber using Deepgram's prerecorded API.
// Each utterance arrives as a complete WAV clip, so the REST endpoint is a
// better fit than the live streaming API.
type DeepgramTranscriber struct {
	client         *listenv1rest.Client
	model          string
	language       string
	circuitBreaker *resilience.CircuitBreaker
	retryConfig    *resilience.RetryConfig
}

// NewDeepgramTranscriber creates a Deepgram prerecorded transcription client
func NewDeepgramTranscriber(cfg *config.Config) *DeepgramTranscriber {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	return &DeepgramTranscriber{
		client:   listenv1rest.New(rest),
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		circuitBreaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// Transcribe sends the utterance to Deepgram and returns the transcript text
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, wavAudio []byte) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	var transcript string
	err := resilience.Retry(ctx, func() error {
		return d.circuitBreaker.Call(func() error {
			resp, err := d.client.FromStream(ctx, bytes.NewReader(wavAudio), options)
			if err != nil {
				return fmt.Errorf("deepgram transcription failed: %w", err)
			}

			if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
				transcript = ""
				return nil
			}
			transcript = resp.Results.Channels[0].Alternatives[0].Transcript
			return nil
		})
	}, d.retryConfig, resilience.IsRetryableNetworkError)

	if err != nil {
		observability.RecordError("transcription", "deepgram")
		return "", err
	}
	return transcript, nil
}
