package lobby

import (
	"os"
	"strconv"
	"time"
)

// Config holds lobby API connection settings.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// NewConfigFromEnv reads LOBBY_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	timeoutSec, err := strconv.Atoi(getEnv("LOBBY_TIMEOUT_SECONDS", "30"))
	if err != nil {
		timeoutSec = 30
	}

	return Config{
		BaseURL:   getEnv("LOBBY_BASE_URL", "http://localhost:8080"),
		AuthToken: os.Getenv("LOBBY_AUTH_TOKEN"),
		Timeout:   time.Duration(timeoutSec) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
