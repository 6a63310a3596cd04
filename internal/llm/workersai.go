package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/resilience"
)

// WorkersAIGenerator implements Generator against a Workers AI chat model.
// Responses stream back as server-sent events, one JSON payload per data line.
type WorkersAIGenerator struct {
	httpClient     *http.Client
	baseURL        string
	accountID      string
	token          string
	model          string
	temperature    float64
	circuitBreaker *resilience.CircuitBreaker
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
}

type chatStreamChunk struct {
	Response string `json:"response"`
}

// NewWorkersAIGenerator creates a streaming chat completion client
func NewWorkersAIGenerator(cfg *config.Config) *WorkersAIGenerator {
	return &WorkersAIGenerator{
		// Generous timeout, long responses stream for a while
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		baseURL:     cfg.WorkersAIBaseURL,
		accountID:   cfg.WorkersAIAccountID,
		token:       cfg.WorkersAIToken,
		model:       cfg.GenerationModel,
		temperature: cfg.GenerationTemperature,
		circuitBreaker: resilience.NewCircuitBreaker(
			"generation",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

// Stream sends the conversation to the model and forwards each delta to onDelta
func (g *WorkersAIGenerator) Stream(ctx context.Context, messages []Message, onDelta func(delta string) error) error {
	err := g.circuitBreaker.Call(func() error {
		return g.stream(ctx, messages, onDelta)
	})
	if err != nil {
		observability.RecordError("generation", "workersai")
	}
	return err
}

func (g *WorkersAIGenerator) stream(ctx context.Context, messages []Message, onDelta func(delta string) error) error {
	payload, err := json.Marshal(chatRequest{
		Messages:    messages,
		Stream:      true,
		Temperature: g.temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/ai/run/%s", g.baseURL, g.accountID, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("generation returned status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed keepalive or metadata lines
			continue
		}
		if chunk.Response == "" {
			continue
		}

		if err := onDelta(chunk.Response); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading generation stream: %w", err)
	}

	return nil
}
