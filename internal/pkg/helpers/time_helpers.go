package helpers

import (
	"time"

	"github.com/yigit/libris/internal/pkg/logger"
)

// ParseDuration parses a config duration such as "1h" or "720h". Blank or
// malformed values fall back to def.
func ParseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logger.Warn().Err(err).Str("value", value).Dur("default", def).Msg("Invalid duration, using default")
		return def
	}
	return d
}
