package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
)

func newTestSynthesizer(baseURL string) *WorkersAISynthesizer {
	cfg := &config.Config{
		WorkersAIBaseURL:           baseURL,
		WorkersAIAccountID:         "acct-123",
		WorkersAIToken:             "test-token",
		MeloTTSModel:               "@cf/myshell-ai/melotts",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           1,
		RetryInitialBackoff:        1,
	}
	return NewWorkersAISynthesizer(cfg)
}

func TestWorkersAISynthesizer_Synthesize(t *testing.T) {
	wantAudio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req synthesisRequest
		json.Unmarshal(body, &req)
		gotPrompt = req.Prompt

		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":  map[string]string{"audio": base64.StdEncoding.EncodeToString(wantAudio)},
			"success": true,
		})
	}))
	defer server.Close()

	s := newTestSynthesizer(server.URL)
	audio, err := s.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if gotPrompt != "Hello there." {
		t.Errorf("Expected prompt 'Hello there.', got %q", gotPrompt)
	}
	if len(audio) != len(wantAudio) {
		t.Fatalf("Expected %d audio bytes, got %d", len(wantAudio), len(audio))
	}
	for i := range wantAudio {
		if audio[i] != wantAudio[i] {
			t.Errorf("Audio byte %d: expected %x, got %x", i, wantAudio[i], audio[i])
		}
	}
}

func TestWorkersAISynthesizer_RunFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  []map[string]string{{"message": "text too long"}},
		})
	}))
	defer server.Close()

	s := newTestSynthesizer(server.URL)
	_, err := s.Synthesize(context.Background(), "...")
	if err == nil {
		t.Fatal("Expected error for failed run")
	}
	if !strings.Contains(err.Error(), "text too long") {
		t.Errorf("Expected error to carry upstream message, got %v", err)
	}
}

func TestWorkersAISynthesizer_BadBase64(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":  map[string]string{"audio": "not valid base64!!!"},
			"success": true,
		})
	}))
	defer server.Close()

	s := newTestSynthesizer(server.URL)
	_, err := s.Synthesize(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error for invalid base64 audio")
	}
}
