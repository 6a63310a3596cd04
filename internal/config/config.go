package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice conversation service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Transcription (speech-to-text) configuration.
	// STT_PROVIDER selects the backend: "deepgram" or "workersai".
	STTProvider      string `envconfig:"STT_PROVIDER" default:"deepgram"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Workers AI configuration (whisper STT, melotts TTS, llama generation)
	WorkersAIAccountID string `envconfig:"WORKERS_AI_ACCOUNT_ID" default:""`
	WorkersAIToken     string `envconfig:"WORKERS_AI_TOKEN" required:"true"`
	WorkersAIBaseURL   string `envconfig:"WORKERS_AI_BASE_URL" default:"https://api.cloudflare.com/client/v4/accounts"`
	WhisperModel       string `envconfig:"WHISPER_MODEL" default:"@cf/openai/whisper-tiny-en"`
	MeloTTSModel       string `envconfig:"MELOTTS_MODEL" default:"@cf/myshell-ai/melotts"`

	// Generation configuration
	GenerationModel       string  `envconfig:"GENERATION_MODEL" default:"@cf/meta/llama-3.1-8b-instruct"`
	GenerationTemperature float64 `envconfig:"GENERATION_TEMPERATURE" default:"0.75"`
	SystemInstruction     string  `envconfig:"SYSTEM_INSTRUCTION" default:"You are a helpful assistant in a voice conversation. Keep your responses concise."`

	// Segmentation configuration
	SegmentMaxChars int `envconfig:"SEGMENT_MAX_CHARS" default:"120"` // Forced flush threshold for run-on generation

	// Synthesis queue configuration
	SynthesisConcurrency int `envconfig:"SYNTHESIS_CONCURRENCY" default:"1"` // Workers draining the ordered queue

	// Durable history store configuration.
	// STORE_DRIVER selects the backend: "memory" or "redis".
	StoreDriver    string `envconfig:"STORE_DRIVER" default:"memory"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	StoreTTLHours  int    `envconfig:"STORE_TTL_HOURS" default:"0"` // 0 = keys never expire
	StoreKeyPrefix string `envconfig:"STORE_KEY_PREFIX" default:"chat:"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// ClientConfig holds configuration for the terminal voice client
type ClientConfig struct {
	ServerURL        string `envconfig:"SERVER_URL" default:"ws://localhost:8080"`
	SessionFile      string `envconfig:"SESSION_FILE" default:""` // Defaults to ~/.voicechat-session
	ReadyTimeoutMS   int    `envconfig:"READY_TIMEOUT_MS" default:"2500"`
	VADLoadTimeoutMS int    `envconfig:"VAD_LOAD_TIMEOUT_MS" default:"15000"`

	// Voice activity detection
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"25"`      // 500ms of silence at 20ms frames

	// Playback
	FFPlayPath string `envconfig:"FFPLAY_PATH" default:"ffplay"`

	// Capture. The command must write 16kHz mono s16le PCM to stdout.
	CaptureCommand string `envconfig:"CAPTURE_COMMAND" default:"ffmpeg -f alsa -i default -ac 1 -ar 16000 -f s16le -loglevel quiet pipe:1"`
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.STTProvider {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY is required when STT_PROVIDER=deepgram")
		}
	case "workersai":
		// Token already validated by envconfig
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}

	switch cfg.StoreDriver {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.SegmentMaxChars <= 0 {
		return nil, fmt.Errorf("SEGMENT_MAX_CHARS must be positive")
	}
	if cfg.SynthesisConcurrency <= 0 {
		return nil, fmt.Errorf("SYNTHESIS_CONCURRENCY must be positive")
	}

	return &cfg, nil
}

// LoadClient reads the terminal client configuration from the environment
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}
	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
