package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("WORKERS_AI_TOKEN", "test-workers-token")
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Cleanup(func() {
		os.Unsetenv("WORKERS_AI_TOKEN")
		os.Unsetenv("DEEPGRAM_API_KEY")
	})
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.WorkersAIToken != "test-workers-token" {
		t.Errorf("Expected WorkersAIToken 'test-workers-token', got '%s'", cfg.WorkersAIToken)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("WORKERS_AI_TOKEN")
	os.Unsetenv("DEEPGRAM_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_MissingDeepgramKey(t *testing.T) {
	os.Setenv("WORKERS_AI_TOKEN", "test-workers-token")
	os.Setenv("STT_PROVIDER", "deepgram")
	os.Unsetenv("DEEPGRAM_API_KEY")
	defer os.Unsetenv("WORKERS_AI_TOKEN")
	defer os.Unsetenv("STT_PROVIDER")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when STT_PROVIDER=deepgram and DEEPGRAM_API_KEY is missing")
	}
}

func TestLoad_WorkersAIProvider(t *testing.T) {
	os.Setenv("WORKERS_AI_TOKEN", "test-workers-token")
	os.Setenv("STT_PROVIDER", "workersai")
	os.Unsetenv("DEEPGRAM_API_KEY")
	defer os.Unsetenv("WORKERS_AI_TOKEN")
	defer os.Unsetenv("STT_PROVIDER")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.STTProvider != "workersai" {
		t.Errorf("Expected STTProvider 'workersai', got '%s'", cfg.STTProvider)
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("STT_PROVIDER", "nope")
	defer os.Unsetenv("STT_PROVIDER")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown STT_PROVIDER")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}

	if cfg.WhisperModel != "@cf/openai/whisper-tiny-en" {
		t.Errorf("Expected default WhisperModel '@cf/openai/whisper-tiny-en', got '%s'", cfg.WhisperModel)
	}

	if cfg.GenerationModel != "@cf/meta/llama-3.1-8b-instruct" {
		t.Errorf("Expected default GenerationModel '@cf/meta/llama-3.1-8b-instruct', got '%s'", cfg.GenerationModel)
	}

	if cfg.GenerationTemperature != 0.75 {
		t.Errorf("Expected default GenerationTemperature 0.75, got %f", cfg.GenerationTemperature)
	}

	if cfg.SegmentMaxChars != 120 {
		t.Errorf("Expected default SegmentMaxChars 120, got %d", cfg.SegmentMaxChars)
	}

	if cfg.SynthesisConcurrency != 1 {
		t.Errorf("Expected default SynthesisConcurrency 1, got %d", cfg.SynthesisConcurrency)
	}

	if cfg.StoreDriver != "memory" {
		t.Errorf("Expected default StoreDriver 'memory', got '%s'", cfg.StoreDriver)
	}

	if cfg.StoreKeyPrefix != "chat:" {
		t.Errorf("Expected default StoreKeyPrefix 'chat:', got '%s'", cfg.StoreKeyPrefix)
	}
}

func TestLoad_ResilienceDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.RetryInitialBackoff != 100 {
		t.Errorf("Expected default RetryInitialBackoff 100, got %d", cfg.RetryInitialBackoff)
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() failed: %v", err)
	}

	if cfg.ServerURL != "ws://localhost:8080" {
		t.Errorf("Expected default ServerURL 'ws://localhost:8080', got '%s'", cfg.ServerURL)
	}

	if cfg.ReadyTimeoutMS != 2500 {
		t.Errorf("Expected default ReadyTimeoutMS 2500, got %d", cfg.ReadyTimeoutMS)
	}

	if cfg.VADLoadTimeoutMS != 15000 {
		t.Errorf("Expected default VADLoadTimeoutMS 15000, got %d", cfg.VADLoadTimeoutMS)
	}

	if cfg.VADEnergyThreshold != 500.0 {
		t.Errorf("Expected default VADEnergyThreshold 500.0, got %f", cfg.VADEnergyThreshold)
	}

	if cfg.VADSilenceFrames != 25 {
		t.Errorf("Expected default VADSilenceFrames 25, got %d", cfg.VADSilenceFrames)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
