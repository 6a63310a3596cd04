package stt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/resilience"
)

func newTestTranscriber(baseURL string) *WorkersAITranscriber {
	cfg := &config.Config{
		WorkersAIBaseURL:           baseURL,
		WorkersAIAccountID:         "acct-123",
		WorkersAIToken:             "test-token",
		WhisperModel:               "@cf/openai/whisper-tiny-en",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           1,
		RetryInitialBackoff:        1,
	}
	return NewWorkersAITranscriber(cfg)
}

func TestWorkersAITranscriber_Transcribe(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":  map[string]string{"text": "hello there"},
			"success": true,
		})
	}))
	defer server.Close()

	tr := newTestTranscriber(server.URL)
	text, err := tr.Transcribe(context.Background(), []byte("RIFFfakewav"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello there" {
		t.Errorf("Expected transcript 'hello there', got %q", text)
	}
	if gotPath != "/acct-123/ai/run/@cf/openai/whisper-tiny-en" {
		t.Errorf("Unexpected request path: %s", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Unexpected auth header: %s", gotAuth)
	}
	if string(gotBody) != "RIFFfakewav" {
		t.Errorf("Expected raw audio body, got %q", gotBody)
	}
}

func TestWorkersAITranscriber_RunFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  []map[string]string{{"message": "model unavailable"}},
		})
	}))
	defer server.Close()

	tr := newTestTranscriber(server.URL)
	_, err := tr.Transcribe(context.Background(), []byte("RIFF"))
	if err == nil {
		t.Fatal("Expected error for failed run")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("Expected error to carry upstream message, got %v", err)
	}
}

func TestWorkersAITranscriber_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	tr := newTestTranscriber(server.URL)
	_, err := tr.Transcribe(context.Background(), []byte("RIFF"))
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
}

func TestWorkersAITranscriber_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":  map[string]string{"text": "second try"},
			"success": true,
		})
	}))
	defer server.Close()

	tr := newTestTranscriber(server.URL)
	tr.retryConfig = &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	text, err := tr.Transcribe(context.Background(), []byte("RIFF"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "second try" {
		t.Errorf("Expected 'second try', got %q", text)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
