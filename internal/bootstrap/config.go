package bootstrap

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	BackendURL  string
	RealtimeURL string
	MappingPath string
	LogLevel    string

	CaptureDevice     string
	CaptureSampleRate int

	RequestTimeoutSec int
	SyncDebounceMs    int
	AutoGenerate      bool

	StubAddr   string
	StubDBPath string
}

func LoadConfig() *Config {
	return &Config{
		BackendURL:  getEnv("SCOPENOTE_BACKEND_URL", "http://localhost:8484"),
		RealtimeURL: getEnv("SCOPENOTE_REALTIME_URL", ""),
		MappingPath: getEnv("SCOPENOTE_MAPPING", ""),
		LogLevel:    getEnv("SCOPENOTE_LOG_LEVEL", "info"),

		CaptureDevice:     getEnv("SCOPENOTE_CAPTURE_DEVICE", ""),
		CaptureSampleRate: getEnvInt("SCOPENOTE_CAPTURE_RATE", 16000),

		RequestTimeoutSec: getEnvInt("SCOPENOTE_REQUEST_TIMEOUT", 20),
		SyncDebounceMs:    getEnvInt("SCOPENOTE_SYNC_DEBOUNCE_MS", 600),
		AutoGenerate:      getEnv("SCOPENOTE_AUTO_GENERATE", "false") == "true",

		StubAddr:   getEnv("STUB_ADDR", ":8484"),
		StubDBPath: getEnv("STUB_DB", "scopenote.db"),
	}
}

// RealtimeEndpoint builds the websocket URL for a session, deriving
// the scheme from the backend URL unless an explicit realtime URL is
// configured.
func (c *Config) RealtimeEndpoint(sessionID string) string {
	base := c.RealtimeURL
	if base == "" {
		base = c.BackendURL
		switch {
		case strings.HasPrefix(base, "https://"):
			base = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
	}
	return strings.TrimRight(base, "/") + "/ws/" + sessionID
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
