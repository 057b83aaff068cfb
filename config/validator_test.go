package config

import (
	"strings"
	"testing"
)

type envTestStruct struct {
	Environment string `validate:"env"`
}

func TestValidateEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"development", "development", true},
		{"staging", "staging", true},
		{"production", "production", true},
		{"empty", "", false},
		{"unknown", "testing", false},
		{"case sensitive", "Production", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := envTestStruct{Environment: tt.env}
			err := validate.Struct(s)
			if tt.expected && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.expected && err == nil {
				t.Errorf("expected invalid for env %q, got valid", tt.env)
			}
		})
	}
}

func TestValidateWithDetails(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := ValidateWithDetails(cfg); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("invalid config returns field details", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Level = "shouty"
		cfg.Server.Port = 0

		err := ValidateWithDetails(cfg)
		if err == nil {
			t.Fatal("expected validation error")
		}

		details, ok := err.(ValidationErrors)
		if !ok {
			t.Fatalf("expected ValidationErrors, got %T", err)
		}
		if len(details) != 2 {
			t.Errorf("expected 2 errors, got %d", len(details))
		}

		msg := err.Error()
		if !strings.Contains(msg, "Log.Level") {
			t.Errorf("expected error to name Log.Level, got: %s", msg)
		}
		if !strings.Contains(msg, "Server.Port") {
			t.Errorf("expected error to name Server.Port, got: %s", msg)
		}
	})
}

func TestConfigError_Error(t *testing.T) {
	err := ConfigError{
		Field:   "Config.Server.Port",
		Message: "must be at least 1",
		Value:   0,
	}

	msg := err.Error()
	if !strings.Contains(msg, "Config.Server.Port") {
		t.Errorf("expected field name in message, got: %s", msg)
	}
	if !strings.Contains(msg, "must be at least 1") {
		t.Errorf("expected message text, got: %s", msg)
	}
}

func TestValidationErrors_Empty(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "no validation errors" {
		t.Errorf("unexpected message: %s", errs.Error())
	}
}
