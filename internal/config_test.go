package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/fileviewer/pkg/config"
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

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("empty token: err = %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Events.QueueSize != 10 || cfg.Events.Heartbeat != 30*time.Second {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.App.HTTP.Port != 0 || cfg.App.HTTP.SearchStart != 6060 || cfg.App.HTTP.SearchAttempts != 100 {
		t.Errorf("http = %+v", cfg.App.HTTP)
	}
}

func TestConfig_Invalid(t *testing.T) {
	cases := map[string]func(*Config){
		"port":       func(c *Config) { c.App.HTTP.Port = 70000 },
		"registry":   func(c *Config) { c.Registry.Path = "" },
		"queue size": func(c *Config) { c.Events.QueueSize = 0 },
		"heartbeat":  func(c *Config) { c.Events.Heartbeat = time.Millisecond },
		"auth":       func(c *Config) { c.Auth = AuthConfig{Mode: "token"} },
	}
	for name, mutate := range cases {
		cfg := NewDefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("FV_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    host: 0.0.0.0
    port: 7000
registry:
  path: /tmp/reg.db
  legacy_file: /tmp/projects.json
events:
  queue_size: 32
  heartbeat: 15s
auth:
  mode: token
  token: ${FV_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Address(cfg.App.HTTP.Port) != "0.0.0.0:7000" {
		t.Errorf("address = %s", cfg.App.HTTP.Address(cfg.App.HTTP.Port))
	}
	if cfg.Events.QueueSize != 32 || cfg.Events.Heartbeat != 15*time.Second {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Registry.LegacyFile != "/tmp/projects.json" {
		t.Errorf("legacy = %q", cfg.Registry.LegacyFile)
	}
	// Untouched keys keep their defaults.
	if cfg.App.HTTP.SearchAttempts != DefaultPortSearchAttempts {
		t.Errorf("search attempts = %d", cfg.App.HTTP.SearchAttempts)
	}
}
