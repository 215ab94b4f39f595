package resilience

import (
	"time"
)

// FromRetryConfig converts engine config values to a linear RetryConfig.
func FromRetryConfig(maxAttempts, retryDelayMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if retryDelayMs > 0 {
		cfg.InitialBackoff = time.Duration(retryDelayMs) * time.Millisecond
	}
	return cfg
}
