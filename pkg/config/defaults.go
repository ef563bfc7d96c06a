package config

import (
	"os"
	"time"
)

// envDuration parses a Go duration string from the environment, falling
// back to def on absence or parse failure.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
