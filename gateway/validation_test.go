package gateway

import (
	"strings"
	"testing"
)

func TestValidateConfigFields(t *testing.T) {
	fields := []ConfigField{
		{Key: "login", Required: true, Type: "string", MinLength: 3, MaxLength: 10},
		{Key: "password", Required: true, Type: "string", Secret: true},
		{Key: "partner", Required: false, Type: "string", Pattern: "^[A-Za-z]+$"},
		{Key: "timeout", Required: false, Type: "number"},
		{Key: "callback", Required: false, Type: "url"},
		{Key: "test_requests", Required: false, Type: "boolean"},
		EnvironmentField(),
	}

	tests := []struct {
		name     string
		config   map[string]string
		errorMsg string
	}{
		{
			name:   "valid",
			config: map[string]string{"login": "merchant", "password": "secret", "environment": "sandbox"},
		},
		{
			name:     "missing required",
			config:   map[string]string{"password": "secret", "environment": "sandbox"},
			errorMsg: "required field 'login' is missing",
		},
		{
			name:     "empty required",
			config:   map[string]string{"login": "  ", "password": "secret", "environment": "sandbox"},
			errorMsg: "required field 'login' cannot be empty",
		},
		{
			name:     "too short",
			config:   map[string]string{"login": "ab", "password": "secret", "environment": "sandbox"},
			errorMsg: "must be at least 3 characters",
		},
		{
			name:     "too long",
			config:   map[string]string{"login": "abcdefghijk", "password": "secret", "environment": "sandbox"},
			errorMsg: "must not exceed 10 characters",
		},
		{
			name:     "bad environment",
			config:   map[string]string{"login": "merchant", "password": "secret", "environment": "staging"},
			errorMsg: "environment must be one of",
		},
		{
			name:     "pattern mismatch",
			config:   map[string]string{"login": "merchant", "password": "secret", "environment": "test", "partner": "Pay-Pal"},
			errorMsg: "does not match required pattern",
		},
		{
			name:     "bad number",
			config:   map[string]string{"login": "merchant", "password": "secret", "environment": "test", "timeout": "soon"},
			errorMsg: "must be a number",
		},
		{
			name:     "bad url",
			config:   map[string]string{"login": "merchant", "password": "secret", "environment": "test", "callback": "not a url"},
			errorMsg: "must be an absolute URL",
		},
		{
			name:     "bad boolean",
			config:   map[string]string{"login": "merchant", "password": "secret", "environment": "test", "test_requests": "yes"},
			errorMsg: "must be 'true' or 'false'",
		},
		{
			name:   "optional empty is skipped",
			config: map[string]string{"login": "merchant", "password": "secret", "environment": "production", "partner": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfigFields("payflow", tt.config, fields)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errorMsg)
			}
			if !strings.HasPrefix(err.Error(), "payflow: ") {
				t.Errorf("error %q is not prefixed with the gateway name", err.Error())
			}
		})
	}
}

func TestSecretKeys(t *testing.T) {
	keys := SecretKeys([]ConfigField{
		{Key: "login"},
		{Key: "password", Secret: true},
	})
	if !keys["password"] || keys["login"] {
		t.Errorf("unexpected secret keys %v", keys)
	}
}

func TestIsProduction(t *testing.T) {
	if !IsProduction(map[string]string{"environment": "production"}) {
		t.Error("expected production")
	}
	if IsProduction(map[string]string{"environment": "sandbox"}) {
		t.Error("sandbox is not production")
	}
}
