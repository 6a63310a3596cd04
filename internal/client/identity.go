package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// defaultSessionFileName is used when no session file path is configured
const defaultSessionFileName = ".voicechat-session"

// SessionFilePath resolves the session identity file location
func SessionFilePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultSessionFileName), nil
}

// LoadOrCreateSessionID returns the persisted session identity, minting
// and persisting a fresh one if the file is missing or holds garbage
func LoadOrCreateSessionID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	return RotateSessionID(path)
}

// RotateSessionID mints a new session identity and persists it,
// abandoning whatever identity the file held before
func RotateSessionID(path string) (string, error) {
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write session file: %w", err)
	}
	return id, nil
}
