package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg = AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("empty token err = %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"missing notebook path", func(c *Config) { c.Notebook.Path = "" }, false},
		{"extension with dot", func(c *Config) { c.Notebook.Extension = ".tsv" }, false},
		{"extension with slash", func(c *Config) { c.Notebook.Extension = "a/b" }, false},
		{"empty extension uses default", func(c *Config) { c.Notebook.Extension = "" }, true},
		{"title with separator", func(c *Config) { c.Notebook.Title = "a/b" }, false},
		{"dot title", func(c *Config) { c.Notebook.Title = ".." }, false},
		{"plain title", func(c *Config) { c.Notebook.Title = "journal" }, true},
		{"negative autosave", func(c *Config) { c.App.AutosaveInterval = -time.Second }, false},
		{"autosave disabled", func(c *Config) { c.App.AutosaveInterval = 0 }, true},
		{"port out of range", func(c *Config) { c.App.HTTP.Port = 70000 }, false},
		{"missing sqlite path", func(c *Config) { c.SQLite.Path = "" }, false},
		{"token without value", func(c *Config) { c.Auth.Mode = "token" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
