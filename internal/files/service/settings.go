package service

import (
	"fmt"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

const (
	defaultMaxUploadBytes = 10 * 1024 * 1024
	defaultRequestTimeout = 30 * time.Second
)

// Settings captures runtime configuration of the file service.
type Settings struct {
	// MaxUploadBytes caps a single upload.
	MaxUploadBytes int64
	// SweepOnStart purges corrupt descriptors before serving.
	SweepOnStart bool
	// RequestTimeout bounds one HTTP request.
	RequestTimeout time.Duration
}

// LoadSettingsFromConfig reads configuration and applies defaults.
func LoadSettingsFromConfig() Settings {
	settings := Settings{
		MaxUploadBytes: int64FromConfig("settings.files.max_upload_bytes", defaultMaxUploadBytes),
		SweepOnStart:   boolFromConfig("settings.files.sweep_on_start", true),
		RequestTimeout: time.Duration(int64FromConfig("settings.files.request_timeout_ms", defaultRequestTimeout.Milliseconds())) * time.Millisecond,
	}

	if settings.MaxUploadBytes <= 0 {
		settings.MaxUploadBytes = defaultMaxUploadBytes
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = defaultRequestTimeout
	}

	return settings
}

// int64FromConfig reads an int64 configuration value with a default fallback.
func int64FromConfig(key string, def int64) int64 {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed int64
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// boolFromConfig reads a boolean configuration value with a default fallback.
func boolFromConfig(key string, def bool) bool {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		return v
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		default:
			return def
		}
	default:
		return def
	}
}
