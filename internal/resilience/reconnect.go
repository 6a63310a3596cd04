package resilience

import (
	"context"
	"time"

	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

// ReconnectConfig holds configuration for connection re-establishment
type ReconnectConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Multiplier  float64
	MaxBackoff  time.Duration
}

// DefaultReconnectConfig returns a default reconnect configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// Reconnect attempts to re-establish a connection with exponential backoff.
// fn should dial and return nil on success.
func Reconnect(ctx context.Context, fn func() error, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	log := observability.GetLogger()
	backoff := config.Backoff

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Reconnected")
			}
			return nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", config.MaxAttempts).
			Dur("backoff", backoff).Msg("Connection attempt failed")

		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	return lastErr
}
