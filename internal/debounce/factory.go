package debounce

import (
	"fmt"
	"time"

	"doiver/internal/config"
	"doiver/internal/doiver"
)

// DefaultTTL is the debounce window used when the config leaves it unset.
// Editors fire duplicate save notifications within milliseconds; five
// seconds comfortably covers one logical edit without blocking real
// follow-up edits.
const DefaultTTL = 5 * time.Second

// NewDebouncerFromConfig creates a Debouncer based on the debounce config type.
func NewDebouncerFromConfig(cfg config.DebounceConfig, clock doiver.Clock) (doiver.Debouncer, error) {
	ttl := DefaultTTL
	if cfg.TTLSeconds > 0 {
		ttl = time.Duration(cfg.TTLSeconds) * time.Second
	}

	switch cfg.Type {
	case "memory", "":
		return NewMemoryDebouncer(ttl, clock), nil
	default:
		return nil, fmt.Errorf("unknown debounce type: %s", cfg.Type)
	}
}
