package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allEnvVars = []string{
	ConfigFileEnv,
	"SERVICE_PRINCIPAL", "HTTP_PORT", "METRICS_PORT",
	"CAPTURE_RECOGNIZER", "CAPTURE_LANGUAGE_CODE", "CAPTURE_SAMPLE_RATE_HZ",
	"CAPTURE_INTERIM_RESULTS", "CAPTURE_AUDIO_ENCODING", "CAPTURE_RESTART_DELAY",
	"DEBOUNCE_MIN_LENGTH", "DEBOUNCE_DELAY",
	"WORKFLOW_MIN_INPUT_LENGTH", "WORKFLOW_OVERRIDE_MIN_ATTEMPTS",
	"VALIDATOR_BASE_URL", "VALIDATOR_PATH", "VALIDATOR_AUTH_TOKEN", "VALIDATOR_TIMEOUT",
	"SEARCH_BASE_URL", "SEARCH_AUTH_TOKEN", "SEARCH_TIMEOUT",
	"CREDITS_BACKEND", "CREDITS_PATH", "CREDITS_KEY", "CREDITS_INITIAL",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_ATTEMPTS", "KAFKA_TOPIC_TRANSITIONS",
	"KAFKA_TOPIC_CAPTURE", "KAFKA_PRINCIPAL",
	"LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv() {
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "svc-radpad-intake" {
		t.Errorf("expected default principal 'svc-radpad-intake', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default port '8080', got %s", cfg.Service.HTTPPort)
	}

	// Policy constants
	if cfg.Debounce.MinLength != 3 {
		t.Errorf("expected default debounce min length 3, got %d", cfg.Debounce.MinLength)
	}
	if cfg.Debounce.Delay != 2*time.Second {
		t.Errorf("expected default debounce delay 2s, got %v", cfg.Debounce.Delay)
	}
	if cfg.Capture.RestartDelay != 300*time.Millisecond {
		t.Errorf("expected default restart delay 300ms, got %v", cfg.Capture.RestartDelay)
	}
	if cfg.Workflow.MinInputLength != 10 {
		t.Errorf("expected default min input length 10, got %d", cfg.Workflow.MinInputLength)
	}
	if cfg.Workflow.OverrideMinAttempts != 1 {
		t.Errorf("expected default override min attempts 1, got %d", cfg.Workflow.OverrideMinAttempts)
	}

	if cfg.Capture.Recognizer != "mock" {
		t.Errorf("expected default recognizer 'mock', got %s", cfg.Capture.Recognizer)
	}
	if cfg.Capture.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.Capture.InterimResults)
	}
	if cfg.Credits.Backend != "sqlite" {
		t.Errorf("expected default credits backend 'sqlite', got %s", cfg.Credits.Backend)
	}
	if cfg.Credits.Key != "validationsRemaining" {
		t.Errorf("expected default credits key 'validationsRemaining', got %s", cfg.Credits.Key)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("CAPTURE_RECOGNIZER", "google")
	os.Setenv("CAPTURE_SAMPLE_RATE_HZ", "8000")
	os.Setenv("CAPTURE_INTERIM_RESULTS", "false")
	os.Setenv("CAPTURE_RESTART_DELAY", "500ms")
	os.Setenv("DEBOUNCE_MIN_LENGTH", "2")
	os.Setenv("DEBOUNCE_DELAY", "750ms")
	os.Setenv("WORKFLOW_MIN_INPUT_LENGTH", "20")
	os.Setenv("VALIDATOR_BASE_URL", "https://validator.example")
	os.Setenv("VALIDATOR_AUTH_TOKEN", "validator-token")
	os.Setenv("SEARCH_AUTH_TOKEN", "lists-token")
	os.Setenv("CREDITS_BACKEND", "file")
	os.Setenv("CREDITS_PATH", "/var/lib/intake")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Capture.Recognizer != "google" {
		t.Errorf("expected recognizer 'google', got %s", cfg.Capture.Recognizer)
	}
	if cfg.Capture.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Capture.SampleRateHz)
	}
	if cfg.Capture.InterimResults != false {
		t.Errorf("expected interim results false, got %v", cfg.Capture.InterimResults)
	}
	if cfg.Capture.RestartDelay != 500*time.Millisecond {
		t.Errorf("expected restart delay 500ms, got %v", cfg.Capture.RestartDelay)
	}
	if cfg.Debounce.MinLength != 2 {
		t.Errorf("expected debounce min length 2, got %d", cfg.Debounce.MinLength)
	}
	if cfg.Debounce.Delay != 750*time.Millisecond {
		t.Errorf("expected debounce delay 750ms, got %v", cfg.Debounce.Delay)
	}
	if cfg.Workflow.MinInputLength != 20 {
		t.Errorf("expected min input length 20, got %d", cfg.Workflow.MinInputLength)
	}
	if cfg.Validator.BaseURL != "https://validator.example" {
		t.Errorf("expected validator base url, got %s", cfg.Validator.BaseURL)
	}
	if cfg.Validator.AuthToken != "validator-token" || cfg.Search.AuthToken != "lists-token" {
		t.Errorf("expected separate tokens, got validator %q search %q", cfg.Validator.AuthToken, cfg.Search.AuthToken)
	}
	if cfg.Credits.Backend != "file" || cfg.Credits.Path != "/var/lib/intake" {
		t.Errorf("expected file credits at /var/lib/intake, got %s %s", cfg.Credits.Backend, cfg.Credits.Path)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("CAPTURE_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("CAPTURE_INTERIM_RESULTS", "invalid")
	os.Setenv("CAPTURE_RESTART_DELAY", "soon")
	os.Setenv("DEBOUNCE_MIN_LENGTH", "three")
	os.Setenv("DEBOUNCE_DELAY", "invalid")
	defer clearEnv()

	cfg := Load()

	if cfg.Capture.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Capture.SampleRateHz)
	}
	if cfg.Capture.InterimResults != true {
		t.Errorf("expected default interim results on invalid input, got %v", cfg.Capture.InterimResults)
	}
	if cfg.Capture.RestartDelay != 300*time.Millisecond {
		t.Errorf("expected default restart delay on invalid input, got %v", cfg.Capture.RestartDelay)
	}
	if cfg.Debounce.MinLength != 3 {
		t.Errorf("expected default debounce min length on invalid input, got %d", cfg.Debounce.MinLength)
	}
	if cfg.Debounce.Delay != 2*time.Second {
		t.Errorf("expected default debounce delay on invalid input, got %v", cfg.Debounce.Delay)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoadFile_OverlaysThenEnvWins(t *testing.T) {
	clearEnv()
	defer clearEnv()

	path := filepath.Join(t.TempDir(), "intake.toml")
	content := `
[debounce]
min_length = 4
delay = "1500ms"

[workflow]
override_min_attempts = 2

[search]
auth_token = "from-file"

[credits]
backend = "memory"
initial = 5

[kafka]
brokers = ["broker:9092"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	os.Setenv("DEBOUNCE_MIN_LENGTH", "6")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Debounce.MinLength != 6 {
		t.Errorf("expected env to win with min length 6, got %d", cfg.Debounce.MinLength)
	}
	if cfg.Debounce.Delay != 1500*time.Millisecond {
		t.Errorf("expected delay 1.5s from file, got %v", cfg.Debounce.Delay)
	}
	if cfg.Workflow.OverrideMinAttempts != 2 {
		t.Errorf("expected override min attempts 2, got %d", cfg.Workflow.OverrideMinAttempts)
	}
	if cfg.Credits.Backend != "memory" || cfg.Credits.Initial != 5 {
		t.Errorf("expected memory backend seeded with 5, got %s %d", cfg.Credits.Backend, cfg.Credits.Initial)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "broker:9092" {
		t.Errorf("expected broker from file, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Search.AuthToken != "from-file" || cfg.Validator.AuthToken != "" {
		t.Errorf("expected search token from file only, got search %q validator %q", cfg.Search.AuthToken, cfg.Validator.AuthToken)
	}
	// Untouched sections keep their defaults.
	if cfg.Workflow.MinInputLength != 10 {
		t.Errorf("expected default min input length, got %d", cfg.Workflow.MinInputLength)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv()
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[debounce]\ndelay = \"whenever\"\n"), 0o600)
	_, err := LoadFile(bad)
	if err == nil || !strings.Contains(err.Error(), "debounce.delay") {
		t.Errorf("expected debounce.delay error, got %v", err)
	}
}

func TestLoad_BadFileIsSkipped(t *testing.T) {
	clearEnv()
	defer clearEnv()
	os.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.toml"))

	cfg := Load()
	if cfg.Debounce.MinLength != 3 {
		t.Errorf("expected defaults when file is unreadable, got %d", cfg.Debounce.MinLength)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero min length", func(c *Config) { c.Debounce.MinLength = 0 }, "debounce min length"},
		{"zero delay", func(c *Config) { c.Debounce.Delay = 0 }, "debounce delay"},
		{"unknown recognizer", func(c *Config) { c.Capture.Recognizer = "browser" }, "capture recognizer"},
		{"unknown backend", func(c *Config) { c.Credits.Backend = "redis" }, "credits backend"},
		{"file without path", func(c *Config) { c.Credits.Backend = "file"; c.Credits.Path = "" }, "credits path"},
		{"memory without path", func(c *Config) { c.Credits.Backend = "memory"; c.Credits.Path = "" }, ""},
		{"empty key", func(c *Config) { c.Credits.Key = "" }, "credits key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
