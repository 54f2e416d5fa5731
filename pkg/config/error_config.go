package config

import (
	"strings"
	"time"
)

// ErrorHandlerConfig configures the ambient retry/circuit-breaker behavior
// around the checkpoint store and HTTP layer. It has no effect on the
// deterministic simulation engine itself, which never retries.
type ErrorHandlerConfig struct {
	MaxRetryAttempts int           `json:"max_retry_attempts" env:"ERROR_MAX_RETRY_ATTEMPTS" default:"3"`
	RetryDelay       time.Duration `json:"retry_delay" env:"ERROR_RETRY_DELAY" default:"1s"`

	CircuitBreakerEnabled   bool          `json:"circuit_breaker_enabled" env:"CIRCUIT_BREAKER_ENABLED" default:"true"`
	CircuitBreakerTimeout   time.Duration `json:"circuit_breaker_timeout" env:"CIRCUIT_BREAKER_TIMEOUT" default:"60s"`
	CircuitBreakerThreshold int           `json:"circuit_breaker_threshold" env:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
}

// LoadErrorHandlerConfig loads error handler configuration from environment.
func LoadErrorHandlerConfig() *ErrorHandlerConfig {
	return &ErrorHandlerConfig{
		MaxRetryAttempts: getIntEnv("ERROR_MAX_RETRY_ATTEMPTS", 3),
		RetryDelay:       getDurationEnv("ERROR_RETRY_DELAY", 1*time.Second),

		CircuitBreakerEnabled:   getBoolEnv("CIRCUIT_BREAKER_ENABLED", true),
		CircuitBreakerTimeout:   getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", 60*time.Second),
		CircuitBreakerThreshold: getIntEnv("CIRCUIT_BREAKER_THRESHOLD", 5),
	}
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
