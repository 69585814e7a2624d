package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid marks configuration that cannot be used to issue a request.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPersonaName and DefaultPersonaContent describe the built-in persona
// sent ahead of the user's message when the persona is enabled.
const (
	DefaultPersonaName    = "Kisin"
	DefaultPersonaContent = "You are Kisin, the skeletal death god, creator of the underworld. " +
		"You speak in English, with fragments of Mayan mixed in. " +
		"You are a ever present, yet invisible host on the system a user is logging into."
)

// Config holds all application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Request RequestFlags  `mapstructure:"request" yaml:"request"`
	Persona PersonaConfig `mapstructure:"persona" yaml:"persona"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	OrganizationID string        `mapstructure:"api_org" yaml:"api_org,omitempty"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"-"`
}

// MarshalYAML renders the timeout as a duration string instead of nanoseconds.
func (l LLMConfig) MarshalYAML() (any, error) {
	type plain LLMConfig
	return struct {
		plain   `yaml:",inline"`
		Timeout string `yaml:"timeout"`
	}{plain(l), l.Timeout.String()}, nil
}

// RequestFlags are the per-invocation request settings.
type RequestFlags struct {
	Stream bool   `mapstructure:"stream" yaml:"stream"`
	User   string `mapstructure:"user" yaml:"user"`
	// UserRole is the role the user's message is sent with. It defaults to
	// "system", which is how this client has always sent it.
	UserRole string `mapstructure:"user_role" yaml:"user_role"`
}

// PersonaConfig describes the optional persona message.
type PersonaConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" yaml:"name"`
	Content string `mapstructure:"content" yaml:"content"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint,omitempty"`
	SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// RequestConfig is everything one chat-completion run needs. It is built once
// from the command line and never modified afterwards.
type RequestConfig struct {
	Prompt         string
	UserLabel      string
	StreamEnabled  bool
	APIKey         string
	OrganizationID string

	Provider string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	UserRole string
	Persona  PersonaConfig
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"stream":          "request.stream",
	"user":            "request.user",
	"user-role":       "request.user_role",
	"api-key":         "llm.api_key",
	"api-org":         "llm.api_org",
	"provider":        "llm.provider",
	"model":           "llm.model",
	"base-url":        "llm.base_url",
	"timeout":         "llm.timeout",
	"persona":         "persona.enabled",
	"persona-name":    "persona.name",
	"persona-content": "persona.content",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"otlp-endpoint":   "tracing.otlp_endpoint",
}

// RegisterFlags declares every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool("stream", true, "Should responses be streamed")
	// --stream takes an explicit value: "--stream false" and "--stream=false" both work.
	fs.Lookup("stream").NoOptDefVal = ""
	fs.String("user", "cli-user", "The user representing the query")
	fs.String("user-role", "system", "Role the user's message is sent with (system|user)")
	fs.String("api-key", "", "API key (env API_KEY or OPENAI_API_KEY)")
	fs.String("api-org", "", "API organization")
	fs.String("provider", "openai", "LLM provider (see 'chatcli providers')")
	fs.String("model", "gpt-3.5-turbo", "Chat model")
	fs.String("base-url", "", "Override the provider base URL")
	fs.Duration("timeout", 2*time.Minute, "Per-request timeout (0 disables)")
	fs.Bool("persona", false, "Send the persona message ahead of the prompt (on by default when streaming)")
	fs.String("persona-name", DefaultPersonaName, "Persona message author name")
	fs.String("persona-content", DefaultPersonaContent, "Persona message text")
	fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	fs.String("log-format", "console", "Log format (console, json)")
	fs.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces (disabled when empty)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("request.stream", true)
	v.SetDefault("request.user", "cli-user")
	v.SetDefault("request.user_role", "system")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("persona.name", DefaultPersonaName)
	v.SetDefault("persona.content", DefaultPersonaContent)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Load reads configuration from flags, environment and an optional file.
// Precedence is flag, environment, file, default. path may be empty.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATCLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The key is also accepted under the names the API's own tooling uses.
	if err := v.BindEnv("llm.api_key", "CHATCLI_LLM_API_KEY", "API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	// Unless set explicitly, the persona is sent with streamed requests only.
	if !v.IsSet("persona.enabled") {
		cfg.Persona.Enabled = cfg.Request.Stream
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.OrganizationID != "" && c.LLM.Provider != "openai" {
		warnings = append(warnings, fmt.Sprintf("api_org is only meaningful for the openai provider, not '%s'", c.LLM.Provider))
	}

	if c.Persona.Enabled && c.Persona.Content == "" {
		warnings = append(warnings, "persona is enabled but persona content is empty")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// ForPrompt builds the immutable RequestConfig for prompt. Returned errors wrap
// ErrInvalid.
func (c *Config) ForPrompt(prompt string) (*RequestConfig, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is empty", ErrInvalid)
	}
	if c.LLM.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required (--api-key, API_KEY or OPENAI_API_KEY)", ErrInvalid)
	}
	if c.LLM.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout %s is negative", ErrInvalid, c.LLM.Timeout)
	}
	switch c.Request.UserRole {
	case "system", "user":
	default:
		return nil, fmt.Errorf("%w: user role %q (want system or user)", ErrInvalid, c.Request.UserRole)
	}

	return &RequestConfig{
		Prompt:         prompt,
		UserLabel:      c.Request.User,
		StreamEnabled:  c.Request.Stream,
		APIKey:         c.LLM.APIKey,
		OrganizationID: c.LLM.OrganizationID,
		Provider:       c.LLM.Provider,
		Model:          c.LLM.Model,
		BaseURL:        c.LLM.BaseURL,
		Timeout:        c.LLM.Timeout,
		UserRole:       c.Request.UserRole,
		Persona:        c.Persona,
	}, nil
}

// Redacted returns a copy of c safe to print.
func (c Config) Redacted() Config {
	c.LLM.APIKey = MaskSecret(c.LLM.APIKey)
	return c
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
