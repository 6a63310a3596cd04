package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/resilience"
)

// WorkersAITranscriber implements Transcriber using a Workers AI whisper model.
// The raw WAV payload is posted directly to the model run endpoint.
type WorkersAITranscriber struct {
	httpClient     *http.Client
	baseURL        string
	accountID      string
	token          string
	model          string
	circuitBreaker *resilience.CircuitBreaker
	retryConfig    *resilience.RetryConfig
}

type whisperResponse struct {
	Result struct {
		Text string `json:"text"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewWorkersAITranscriber creates a whisper transcription client
func NewWorkersAITranscriber(cfg *config.Config) *WorkersAITranscriber {
	return &WorkersAITranscriber{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.WorkersAIBaseURL,
		accountID:  cfg.WorkersAIAccountID,
		token:      cfg.WorkersAIToken,
		model:      cfg.WhisperModel,
		circuitBreaker: resilience.NewCircuitBreaker(
			"whisper",
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

// Transcribe posts the utterance to the whisper endpoint and returns the text
func (w *WorkersAITranscriber) Transcribe(ctx context.Context, wavAudio []byte) (string, error) {
	url := fmt.Sprintf("%s/%s/ai/run/%s", w.baseURL, w.accountID, w.model)

	var transcript string
	err := resilience.Retry(ctx, func() error {
		return w.circuitBreaker.Call(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wavAudio))
			if err != nil {
				return fmt.Errorf("failed to create whisper request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+w.token)
			req.Header.Set("Content-Type", "application/octet-stream")

			resp, err := w.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("whisper request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read whisper response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("whisper returned status %d: %s", resp.StatusCode, string(body))
			}

			var parsed whisperResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return fmt.Errorf("failed to parse whisper response: %w", err)
			}
			if !parsed.Success {
				msg := "unknown error"
				if len(parsed.Errors) > 0 {
					msg = parsed.Errors[0].Message
				}
				return fmt.Errorf("whisper run failed: %s", msg)
			}

			transcript = parsed.Result.Text
			return nil
		})
	}, w.retryConfig, resilience.IsRetryableNetworkError)

	if err != nil {
		observability.RecordError("transcription", "whisper")
		return "", err
	}
	return transcript, nil
}
