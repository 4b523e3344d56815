// Package audit provides pluggable audit logging for key slot operations.
// The table records every lifecycle event (open, close, purge, wipe) through
// a Logger; implementations decide where events end up.
package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config defines audit logging configuration
type Config struct {
	Enabled bool                   `json:"enabled"`
	Type    ConfigType             `json:"type"`    // "file", "" (disabled)
	Options map[string]interface{} `json:"options"` // Provider-specific options
}

type ConfigType string

const (
	FileAuditType ConfigType = "file"
	NoOp          ConfigType = ""
)

// Logger interface for pluggable audit implementations
type Logger interface {
	Log(action string, success bool, metadata map[string]interface{}) error
	Close() error
}

// Event represents an audit log event
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	KeyID     string                 `json:"key_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewLogger creates an appropriate logger based on configuration
func NewLogger(config *Config) (Logger, error) {
	if config == nil || !config.Enabled {
		return &NoOpLogger{}, nil
	}

	switch config.Type {
	case FileAuditType:
		return NewFileLogger(config)
	case NoOp:
		return &NoOpLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown audit provider: %s", config.Type)
	}
}

// parseOptions converts map[string]interface{} to specific options struct
func parseOptions(options map[string]interface{}, target interface{}) error {
	if len(options) == 0 {
		return nil
	}

	// Convert to JSON and back to parse into struct
	jsonData, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	if err = json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal options: %w", err)
	}

	return nil
}
