package internal

import (
	"strings"
	"time"
)

type Config struct {
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,required=true"`
	LogLevel       string        `env:"LOG_LEVEL,required=true"`
	SendBufferSize int           `env:"SEND_BUFFER_SIZE,default=256"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS"`
	ReaperInterval time.Duration `env:"REAPER_INTERVAL,default=1h"`
	// ReaperThreshold is the inactivity age past which an empty room is
	// collected.
	ReaperThreshold time.Duration `env:"REAPER_THRESHOLD,default=1h"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Origins splits the comma-separated ALLOWED_ORIGINS value. Empty means the
// transport falls back to a same-origin policy.
func (c Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
