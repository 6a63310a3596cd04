package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/resilience"
)

// WorkersAISynthesizer implements Synthesizer using a Workers AI TTS model.
// The model returns base64-encoded audio in its JSON result.
type WorkersAISynthesizer struct {
	httpClient     *http.Client
	baseURL        string
	accountID      string
	token          string
	model          string
	circuitBreaker *resilience.CircuitBreaker
	retryConfig    *resilience.RetryConfig
}

type synthesisRequest struct {
	Prompt string `json:"prompt"`
}

type synthesisResponse struct {
	Result struct {
		Audio string `json:"audio"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewWorkersAISynthesizer creates a speech synthesis client
func NewWorkersAISynthesizer(cfg *config.Config) *WorkersAISynthesizer {
	return &WorkersAISynthesizer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.WorkersAIBaseURL,
		accountID:  cfg.WorkersAIAccountID,
		token:      cfg.WorkersAIToken,
		model:      cfg.MeloTTSModel,
		circuitBreaker: resilience.NewCircuitBreaker(
			"synthesis",
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

// Synthesize renders the text segment to audio
func (s *WorkersAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	payload, err := json.Marshal(synthesisRequest{Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}
	url := fmt.Sprintf("%s/%s/ai/run/%s", s.baseURL, s.accountID, s.model)

	var audio []byte
	err = resilience.Retry(ctx, func() error {
		return s.circuitBreaker.Call(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("failed to create synthesis request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+s.token)
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("synthesis request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read synthesis response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("synthesis returned status %d: %s", resp.StatusCode, string(body))
			}

			var parsed synthesisResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return fmt.Errorf("failed to parse synthesis response: %w", err)
			}
			if !parsed.Success {
				msg := "unknown error"
				if len(parsed.Errors) > 0 {
					msg = parsed.Errors[0].Message
				}
				return fmt.Errorf("synthesis run failed: %s", msg)
			}

			audio, err = base64.StdEncoding.DecodeString(parsed.Result.Audio)
			if err != nil {
				return fmt.Errorf("failed to decode synthesis audio: %w", err)
			}
			return nil
		})
	}, s.retryConfig, resilience.IsRetryableNetworkError)

	if err != nil {
		observability.RecordError("synthesis", "workersai")
		return nil, err
	}

	observability.RecordSynthesisLatency(time.Since(start))
	return audio, nil
}
