package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	Diagnosis TaskConfig
	Chat      ChatConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	APIToken    string
	MaxUploadMB int
}

type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    string
	MaxRetries int
}

// TaskConfig holds the model candidates and generation settings for one task.
type TaskConfig struct {
	PrimaryModel   string
	FallbackModels []string
	MaxTokens      int
	Temperature    float64
}

// Candidates returns the primary model followed by the fallbacks, in order.
// Blank names are skipped.
func (t TaskConfig) Candidates() []string {
	out := make([]string, 0, 1+len(t.FallbackModels))
	if m := strings.TrimSpace(t.PrimaryModel); m != "" {
		out = append(out, m)
	}
	for _, m := range t.FallbackModels {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

type ChatConfig struct {
	TaskConfig
	MaxHistory int
}

type LogConfig struct {
	Level  string
	Format string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			MaxUploadMB: 10,
		},
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Timeout:    "60s",
			MaxRetries: 3,
		},
		Diagnosis: TaskConfig{
			PrimaryModel:   "gpt-4o-mini",
			FallbackModels: []string{"gpt-4o"},
			MaxTokens:      1000,
			Temperature:    0.3,
		},
		Chat: ChatConfig{
			TaskConfig: TaskConfig{
				PrimaryModel:   "gpt-3.5-turbo",
				FallbackModels: []string{"gpt-4o-mini"},
				MaxTokens:      500,
				Temperature:    0.7,
			},
			MaxHistory: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "sprout",
		},
	}
}

// Load reads configuration from the JSON config file, environment variables,
// and the secrets file, in increasing order of precedence for non-secret keys.
//
// The config file lives at $XDG_CONFIG_HOME/sprout/config.json. Environment
// variables (SPROUT_*) override file values. The provider API key is taken
// from SPROUT_OPENAI_API_KEY, then OPENAI_API_KEY, then the secrets file at
// $XDG_DATA_HOME/sprout/secrets.json.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), secretsReader{})
}

// LoadUnchecked is Load without the required-secret and validation checks.
// It is meant for CLI commands that only need addresses and model names.
func LoadUnchecked() Config {
	cfg := defaults()
	if err := applyBackend(&cfg, newFileBackend(configFilePath())); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using default values.\n", err)
	}
	applyEnvOverrides(&cfg)
	if cfg.Server.APIToken == "" {
		if tok, err := (secretsReader{}).Get(secretService, "api_token"); err == nil {
			cfg.Server.APIToken = tok
		}
	}
	return cfg
}

// keychain abstracts secret lookup for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const secretService = "sprout"

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Provider.APIKey == "" {
		if key, err := kc.Get(secretService, "openai_api_key"); err == nil && key != "" {
			cfg.Provider.APIKey = key
		}
	}
	if cfg.Server.APIToken == "" {
		if tok, err := kc.Get(secretService, "api_token"); err == nil && tok != "" {
			cfg.Server.APIToken = tok
		}
	}

	if cfg.Provider.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: provider API key. "+
			"Set it via environment variable SPROUT_OPENAI_API_KEY or OPENAI_API_KEY, "+
			"or in %s", secretsFilePath())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that would otherwise fail at request time.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid config: server.max_upload_mb must be positive")
	}
	if len(c.Diagnosis.Candidates()) == 0 {
		return fmt.Errorf("invalid config: diagnosis.primary_model is empty")
	}
	if len(c.Chat.Candidates()) == 0 {
		return fmt.Errorf("invalid config: chat.primary_model is empty")
	}
	if c.Chat.MaxHistory < 0 {
		return fmt.Errorf("invalid config: chat.max_history must not be negative")
	}
	return nil
}

// secretsReader reads secrets from the local secrets file.
type secretsReader struct{}

func (secretsReader) Get(service, account string) (string, error) {
	out, err := secretGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
