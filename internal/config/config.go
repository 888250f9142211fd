package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"expense-ledger/internal/auth"
)

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	// HTTP Server
	Port         string
	CORSOrigin   string
	SecureCookie bool

	// Database
	DatabaseURL string

	// Credentials
	Secret         string
	TokenAlgorithm string
	BcryptCost     int

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
}

// Load reads the configuration from the environment, filling in defaults.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3000"),
		CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:5173"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),

		DatabaseURL: getEnv("DATABASE_URL", "expenses.db"),

		Secret:         os.Getenv("SECRET"),
		TokenAlgorithm: getEnv("TOKEN_ALGORITHM", auth.DefaultAlgorithm),
		BcryptCost:     getEnvInt("BCRYPT_COST", auth.DefaultCost),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
	}
}

// Auth returns the credential settings.
func (c *Config) Auth() auth.Config {
	return auth.Config{Secret: c.Secret, Algorithm: c.TokenAlgorithm, Cost: c.BcryptCost}
}

// Validate validates the configuration and returns an error if invalid. A
// missing secret is not an error here; token endpoints report it per request.
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DatabaseURL == "" {
		errors = append(errors, "database URL cannot be empty")
	}

	switch c.TokenAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errors = append(errors, fmt.Sprintf("invalid token algorithm '%s': must be one of HS256, HS384, HS512", c.TokenAlgorithm))
	}

	if c.BcryptCost < 0 {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must not be negative", c.BcryptCost))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.CORSOrigin != "" && c.CORSOrigin != "*" {
		if u, err := url.Parse(c.CORSOrigin); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid CORS origin '%s': must be an absolute URL", c.CORSOrigin))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
