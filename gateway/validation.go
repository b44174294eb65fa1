package gateway

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ConfigField represents a configuration value a gateway reads
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Secret      bool   `json:"secret,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

var validEnvironments = []string{EnvSandbox, EnvTest, EnvProduction}

// EnvironmentField is the field every gateway declares
func EnvironmentField() ConfigField {
	return ConfigField{
		Key:         "environment",
		Required:    true,
		Type:        "string",
		Description: "Environment setting (sandbox, test or production)",
		Example:     EnvSandbox,
		Pattern:     "^(sandbox|test|production)$",
	}
}

// IsProduction reports whether a configuration targets the live endpoint
func IsProduction(config map[string]string) bool {
	return config["environment"] == EnvProduction
}

// ValidateConfigFields validates configuration against provided field definitions
func ValidateConfigFields(gatewayName string, config map[string]string, fields []ConfigField) error {
	for _, field := range fields {
		value, exists := config[field.Key]
		if !field.Required && strings.TrimSpace(value) == "" {
			continue
		}

		if !exists {
			return fmt.Errorf("%s: required field '%s' is missing", gatewayName, field.Key)
		}

		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s: required field '%s' cannot be empty", gatewayName, field.Key)
		}

		if err := validateFieldType(gatewayName, field, value); err != nil {
			return err
		}

		if err := validateFieldPattern(gatewayName, field, value); err != nil {
			return err
		}

		if err := validateFieldLength(gatewayName, field, value); err != nil {
			return err
		}
	}

	return nil
}

func validateFieldType(gatewayName string, field ConfigField, value string) error {
	switch field.Type {
	case "number":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%s: field '%s' must be a number", gatewayName, field.Key)
		}
	case "url":
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: field '%s' must be an absolute URL", gatewayName, field.Key)
		}
	case "boolean":
		if value != "true" && value != "false" {
			return fmt.Errorf("%s: field '%s' must be 'true' or 'false'", gatewayName, field.Key)
		}
	}
	return nil
}

func validateFieldPattern(gatewayName string, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	if field.Key == "environment" {
		for _, env := range validEnvironments {
			if value == env {
				return nil
			}
		}
		return fmt.Errorf("%s: environment must be one of: %s", gatewayName, strings.Join(validEnvironments, ", "))
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return fmt.Errorf("%s: invalid pattern for field '%s': %v", gatewayName, field.Key, err)
	}
	if !matched {
		return fmt.Errorf("%s: field '%s' does not match required pattern", gatewayName, field.Key)
	}
	return nil
}

func validateFieldLength(gatewayName string, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return fmt.Errorf("%s: field '%s' must be at least %d characters", gatewayName, field.Key, field.MinLength)
	}
	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return fmt.Errorf("%s: field '%s' must not exceed %d characters", gatewayName, field.Key, field.MaxLength)
	}
	return nil
}

// SecretKeys lists the config keys that must be masked when displayed
func SecretKeys(fields []ConfigField) map[string]bool {
	keys := make(map[string]bool)
	for _, f := range fields {
		if f.Secret {
			keys[f.Key] = true
		}
	}
	return keys
}
