package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider and API key. Genkit plugins read the keys directly from the
	// environment; fail fast here instead of at the first generation.
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		// Local provider, no key.
	default:
		return fmt.Errorf("%w: %q is not one of gemini, ollama, openai", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range per the Gemini API: 0.0 to 2.0.
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// Chat limits.
	if c.MaxSessionsPerUser < 1 || c.MaxSessionsPerUser > 100 {
		return fmt.Errorf("%w: max_sessions_per_user must be between 1 and 100, got %d",
			ErrInvalidChatLimits, c.MaxSessionsPerUser)
	}
	if c.MaxHistoryMessages < 2 || c.MaxHistoryMessages > 1000 {
		return fmt.Errorf("%w: max_history_messages must be between 2 and 1000, got %d",
			ErrInvalidChatLimits, c.MaxHistoryMessages)
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > 100000 {
		return fmt.Errorf("%w: max_message_length must be between 1 and 100000, got %d",
			ErrInvalidChatLimits, c.MaxMessageLength)
	}

	// Writer pool sizing.
	if c.WriterWorkers < 1 || c.WriterWorkers > 64 {
		return fmt.Errorf("%w: writer_workers must be between 1 and 64, got %d",
			ErrInvalidWriterSizing, c.WriterWorkers)
	}
	if c.WriterQueueSize < 1 || c.WriterQueueSize > 65536 {
		return fmt.Errorf("%w: writer_queue_size must be between 1 and 65536, got %d",
			ErrInvalidWriterSizing, c.WriterQueueSize)
	}

	// PostgreSQL.
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "stressease_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are MITM vulnerable.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// ValidateServe validates the additional settings the serve command needs.
// Split from Validate so migrate can run without an HMAC secret configured.
func (c *Config) ValidateServe() error {
	if c.HMACSecret == "" {
		return fmt.Errorf("%w: set the HMAC_SECRET environment variable", ErrMissingHMACSecret)
	}
	if len(c.HMACSecret) < 32 {
		return fmt.Errorf("%w: must be at least 32 characters (got %d)", ErrInvalidHMACSecret, len(c.HMACSecret))
	}
	return nil
}
