package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "\n")
}

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	var errs ValidationErrors

	required := func(field, value string) {
		if value == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required"})
		}
	}

	required("SERVER_PORT", cfg.ServerPort)

	switch cfg.DBDriver {
	case DriverSQLite:
		required("DB_PATH", cfg.DBPath)
	case DriverPostgres:
		required("DB_HOST", cfg.DBHost)
		required("DB_PORT", cfg.DBPort)
		required("DB_USER", cfg.DBUser)
		required("DB_NAME", cfg.DBName)
		if GetEnvironment() != Development {
			required("DB_PASSWORD", cfg.DBPassword)
		}
	default:
		errs = append(errs, ValidationError{Field: "DB_DRIVER", Message: fmt.Sprintf("unsupported driver %q", cfg.DBDriver)})
	}

	// The API is only exposed unauthenticated outside production
	if IsProduction() {
		required("JWT_SECRET", cfg.JWTSecret)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
