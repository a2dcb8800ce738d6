package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// ConfigFileEnv names the optional TOML file overlaid before env variables.
const ConfigFileEnv = "INTAKE_CONFIG_FILE"

type Config struct {
	Service       ServiceConfig
	Capture       CaptureConfig
	Debounce      DebounceConfig
	Workflow      WorkflowConfig
	Validator     ValidatorConfig
	Search        SearchConfig
	Credits       CreditsConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
}

type CaptureConfig struct {
	Recognizer     string // mock, google
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	RestartDelay   time.Duration
}

type DebounceConfig struct {
	MinLength int
	Delay     time.Duration
}

type WorkflowConfig struct {
	MinInputLength      int
	OverrideMinAttempts int
}

type ValidatorConfig struct {
	BaseURL   string
	Path      string
	AuthToken string
	Timeout   time.Duration
}

// SearchConfig points at the list API. Its token is separate from the
// validator's; empty sends no Authorization header.
type SearchConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

type CreditsConfig struct {
	Backend string // sqlite, file, memory
	Path    string
	Key     string
	Initial int // seed for the memory backend
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicAttempts    string
	TopicTransitions string
	TopicCapture     string
	Principal        string
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-radpad-intake",
			HTTPPort:    "8080",
			MetricsPort: "9090",
		},
		Capture: CaptureConfig{
			Recognizer:     "mock",
			LanguageCode:   "en-US",
			SampleRateHz:   16000,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
			RestartDelay:   300 * time.Millisecond,
		},
		Debounce: DebounceConfig{
			MinLength: 3,
			Delay:     2 * time.Second,
		},
		Workflow: WorkflowConfig{
			MinInputLength:      10,
			OverrideMinAttempts: 1,
		},
		Validator: ValidatorConfig{
			BaseURL: "http://localhost:3000",
			Path:    "/api/orders/validate/trial",
			Timeout: 30 * time.Second,
		},
		Search: SearchConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: 10 * time.Second,
		},
		Credits: CreditsConfig{
			Backend: "sqlite",
			Path:    "data/intake.db",
			Key:     "validationsRemaining",
		},
		Kafka: KafkaConfig{
			TopicAttempts:    "intake.validation.attempts",
			TopicTransitions: "intake.workflow.transitions",
			TopicCapture:     "intake.capture.events",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named by
// INTAKE_CONFIG_FILE, and environment variables, in that order. A file that
// cannot be read is logged and skipped.
func Load() *Config {
	cfg := Default()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Ignoring config file")
		}
	}
	cfg.applyEnv()
	return cfg
}

// LoadFile is Load with an explicit file path whose errors are returned.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.HTTPPort = envOrDefault("HTTP_PORT", c.Service.HTTPPort)
	c.Service.MetricsPort = envOrDefault("METRICS_PORT", c.Service.MetricsPort)

	c.Capture.Recognizer = envOrDefault("CAPTURE_RECOGNIZER", c.Capture.Recognizer)
	c.Capture.LanguageCode = envOrDefault("CAPTURE_LANGUAGE_CODE", c.Capture.LanguageCode)
	c.Capture.SampleRateHz = envOrDefaultInt("CAPTURE_SAMPLE_RATE_HZ", c.Capture.SampleRateHz)
	c.Capture.InterimResults = envOrDefaultBool("CAPTURE_INTERIM_RESULTS", c.Capture.InterimResults)
	c.Capture.AudioEncoding = envOrDefault("CAPTURE_AUDIO_ENCODING", c.Capture.AudioEncoding)
	c.Capture.RestartDelay = envOrDefaultDuration("CAPTURE_RESTART_DELAY", c.Capture.RestartDelay)

	c.Debounce.MinLength = envOrDefaultInt("DEBOUNCE_MIN_LENGTH", c.Debounce.MinLength)
	c.Debounce.Delay = envOrDefaultDuration("DEBOUNCE_DELAY", c.Debounce.Delay)

	c.Workflow.MinInputLength = envOrDefaultInt("WORKFLOW_MIN_INPUT_LENGTH", c.Workflow.MinInputLength)
	c.Workflow.OverrideMinAttempts = envOrDefaultInt("WORKFLOW_OVERRIDE_MIN_ATTEMPTS", c.Workflow.OverrideMinAttempts)

	c.Validator.BaseURL = envOrDefault("VALIDATOR_BASE_URL", c.Validator.BaseURL)
	c.Validator.Path = envOrDefault("VALIDATOR_PATH", c.Validator.Path)
	c.Validator.AuthToken = envOrDefault("VALIDATOR_AUTH_TOKEN", c.Validator.AuthToken)
	c.Validator.Timeout = envOrDefaultDuration("VALIDATOR_TIMEOUT", c.Validator.Timeout)

	c.Search.BaseURL = envOrDefault("SEARCH_BASE_URL", c.Search.BaseURL)
	c.Search.AuthToken = envOrDefault("SEARCH_AUTH_TOKEN", c.Search.AuthToken)
	c.Search.Timeout = envOrDefaultDuration("SEARCH_TIMEOUT", c.Search.Timeout)

	c.Credits.Backend = envOrDefault("CREDITS_BACKEND", c.Credits.Backend)
	c.Credits.Path = envOrDefault("CREDITS_PATH", c.Credits.Path)
	c.Credits.Key = envOrDefault("CREDITS_KEY", c.Credits.Key)
	c.Credits.Initial = envOrDefaultInt("CREDITS_INITIAL", c.Credits.Initial)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.TopicAttempts = envOrDefault("KAFKA_TOPIC_ATTEMPTS", c.Kafka.TopicAttempts)
	c.Kafka.TopicTransitions = envOrDefault("KAFKA_TOPIC_TRANSITIONS", c.Kafka.TopicTransitions)
	c.Kafka.TopicCapture = envOrDefault("KAFKA_TOPIC_CAPTURE", c.Kafka.TopicCapture)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
}

// Validate rejects configurations the intake components cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Debounce.MinLength < 1 {
		errs = append(errs, fmt.Errorf("debounce min length must be >= 1, got %d", c.Debounce.MinLength))
	}
	if c.Debounce.Delay <= 0 {
		errs = append(errs, fmt.Errorf("debounce delay must be positive, got %v", c.Debounce.Delay))
	}
	if c.Capture.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("capture restart delay must not be negative, got %v", c.Capture.RestartDelay))
	}
	switch c.Capture.Recognizer {
	case "mock", "google":
	default:
		errs = append(errs, fmt.Errorf("capture recognizer: unsupported value %q", c.Capture.Recognizer))
	}
	if c.Workflow.MinInputLength < 0 {
		errs = append(errs, fmt.Errorf("workflow min input length must not be negative, got %d", c.Workflow.MinInputLength))
	}
	if c.Workflow.OverrideMinAttempts < 0 {
		errs = append(errs, fmt.Errorf("workflow override min attempts must not be negative, got %d", c.Workflow.OverrideMinAttempts))
	}
	switch c.Credits.Backend {
	case "sqlite", "file":
		if c.Credits.Path == "" {
			errs = append(errs, fmt.Errorf("credits path required for %s backend", c.Credits.Backend))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("credits backend: unsupported value %q", c.Credits.Backend))
	}
	if c.Credits.Key == "" {
		errs = append(errs, errors.New("credits key must not be empty"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fileConfig mirrors Config for TOML decoding. Pointers mark which values the
// file actually sets; durations are Go duration strings.
type fileConfig struct {
	Service struct {
		Principal   *string `toml:"principal"`
		HTTPPort    *string `toml:"http_port"`
		MetricsPort *string `toml:"metrics_port"`
	} `toml:"service"`
	Capture struct {
		Recognizer     *string `toml:"recognizer"`
		LanguageCode   *string `toml:"language_code"`
		SampleRateHz   *int    `toml:"sample_rate_hz"`
		InterimResults *bool   `toml:"interim_results"`
		AudioEncoding  *string `toml:"audio_encoding"`
		RestartDelay   *string `toml:"restart_delay"`
	} `toml:"capture"`
	Debounce struct {
		MinLength *int    `toml:"min_length"`
		Delay     *string `toml:"delay"`
	} `toml:"debounce"`
	Workflow struct {
		MinInputLength      *int `toml:"min_input_length"`
		OverrideMinAttempts *int `toml:"override_min_attempts"`
	} `toml:"workflow"`
	Validator struct {
		BaseURL   *string `toml:"base_url"`
		Path      *string `toml:"path"`
		AuthToken *string `toml:"auth_token"`
		Timeout   *string `toml:"timeout"`
	} `toml:"validator"`
	Search struct {
		BaseURL   *string `toml:"base_url"`
		AuthToken *string `toml:"auth_token"`
		Timeout   *string `toml:"timeout"`
	} `toml:"search"`
	Credits struct {
		Backend *string `toml:"backend"`
		Path    *string `toml:"path"`
		Key     *string `toml:"key"`
		Initial *int    `toml:"initial"`
	} `toml:"credits"`
	Kafka struct {
		Enabled          *bool    `toml:"enabled"`
		Brokers          []string `toml:"brokers"`
		TopicAttempts    *string  `toml:"topic_attempts"`
		TopicTransitions *string  `toml:"topic_transitions"`
		TopicCapture     *string  `toml:"topic_capture"`
		Principal        *string  `toml:"principal"`
	} `toml:"kafka"`
	Observability struct {
		LogLevel  *string `toml:"log_level"`
		LogFormat *string `toml:"log_format"`
	} `toml:"observability"`
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	var errs []error
	setString(&c.Service.Principal, fc.Service.Principal)
	setString(&c.Service.HTTPPort, fc.Service.HTTPPort)
	setString(&c.Service.MetricsPort, fc.Service.MetricsPort)

	setString(&c.Capture.Recognizer, fc.Capture.Recognizer)
	setString(&c.Capture.LanguageCode, fc.Capture.LanguageCode)
	setInt(&c.Capture.SampleRateHz, fc.Capture.SampleRateHz)
	setBool(&c.Capture.InterimResults, fc.Capture.InterimResults)
	setString(&c.Capture.AudioEncoding, fc.Capture.AudioEncoding)
	errs = append(errs, setDuration(&c.Capture.RestartDelay, fc.Capture.RestartDelay, "capture.restart_delay"))

	setInt(&c.Debounce.MinLength, fc.Debounce.MinLength)
	errs = append(errs, setDuration(&c.Debounce.Delay, fc.Debounce.Delay, "debounce.delay"))

	setInt(&c.Workflow.MinInputLength, fc.Workflow.MinInputLength)
	setInt(&c.Workflow.OverrideMinAttempts, fc.Workflow.OverrideMinAttempts)

	setString(&c.Validator.BaseURL, fc.Validator.BaseURL)
	setString(&c.Validator.Path, fc.Validator.Path)
	setString(&c.Validator.AuthToken, fc.Validator.AuthToken)
	errs = append(errs, setDuration(&c.Validator.Timeout, fc.Validator.Timeout, "validator.timeout"))

	setString(&c.Search.BaseURL, fc.Search.BaseURL)
	setString(&c.Search.AuthToken, fc.Search.AuthToken)
	errs = append(errs, setDuration(&c.Search.Timeout, fc.Search.Timeout, "search.timeout"))

	setString(&c.Credits.Backend, fc.Credits.Backend)
	setString(&c.Credits.Path, fc.Credits.Path)
	setString(&c.Credits.Key, fc.Credits.Key)
	setInt(&c.Credits.Initial, fc.Credits.Initial)

	setBool(&c.Kafka.Enabled, fc.Kafka.Enabled)
	if len(fc.Kafka.Brokers) > 0 {
		c.Kafka.Brokers = fc.Kafka.Brokers
	}
	setString(&c.Kafka.TopicAttempts, fc.Kafka.TopicAttempts)
	setString(&c.Kafka.TopicTransitions, fc.Kafka.TopicTransitions)
	setString(&c.Kafka.TopicCapture, fc.Kafka.TopicCapture)
	setString(&c.Kafka.Principal, fc.Kafka.Principal)

	setString(&c.Observability.LogLevel, fc.Observability.LogLevel)
	setString(&c.Observability.LogFormat, fc.Observability.LogFormat)

	return errors.Join(errs...)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
