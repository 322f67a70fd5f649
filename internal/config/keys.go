package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kStringList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secrets file account for secret keys
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "SPROUT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "SPROUT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "SPROUT_SERVER_API_TOKEN",
		secret: true, account: "api_token",
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "server.max_upload_mb", typ: kInt, env: "SPROUT_SERVER_MAX_UPLOAD_MB",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxUploadMB = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxUploadMB },
	},
	{
		key: "provider.api_key", typ: kString, env: "SPROUT_OPENAI_API_KEY",
		secret: true, account: "openai_api_key",
		apply:   func(cfg *Config, v any) { cfg.Provider.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.APIKey },
	},
	{
		key: "provider.base_url", typ: kString, env: "SPROUT_PROVIDER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Provider.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.BaseURL },
	},
	{
		key: "provider.timeout", typ: kString, env: "SPROUT_PROVIDER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Provider.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Timeout },
	},
	{
		key: "provider.max_retries", typ: kInt, env: "SPROUT_PROVIDER_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Provider.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.MaxRetries },
	},
	{
		key: "diagnosis.primary_model", typ: kString, env: "SPROUT_DIAGNOSIS_PRIMARY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Diagnosis.PrimaryModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Diagnosis.PrimaryModel },
	},
	{
		key: "diagnosis.fallback_models", typ: kStringList, env: "SPROUT_DIAGNOSIS_FALLBACK_MODELS",
		apply:   func(cfg *Config, v any) { cfg.Diagnosis.FallbackModels = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Diagnosis.FallbackModels, ",") },
	},
	{
		key: "diagnosis.max_tokens", typ: kInt, env: "SPROUT_DIAGNOSIS_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Diagnosis.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Diagnosis.MaxTokens },
	},
	{
		key: "diagnosis.temperature", typ: kFloat, env: "SPROUT_DIAGNOSIS_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Diagnosis.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Diagnosis.Temperature },
	},
	{
		key: "chat.primary_model", typ: kString, env: "SPROUT_CHAT_PRIMARY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Chat.PrimaryModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.PrimaryModel },
	},
	{
		key: "chat.fallback_models", typ: kStringList, env: "SPROUT_CHAT_FALLBACK_MODELS",
		apply:   func(cfg *Config, v any) { cfg.Chat.FallbackModels = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Chat.FallbackModels, ",") },
	},
	{
		key: "chat.max_tokens", typ: kInt, env: "SPROUT_CHAT_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Chat.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.MaxTokens },
	},
	{
		key: "chat.temperature", typ: kFloat, env: "SPROUT_CHAT_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Chat.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Chat.Temperature },
	},
	{
		key: "chat.max_history", typ: kInt, env: "SPROUT_CHAT_MAX_HISTORY",
		apply:   func(cfg *Config, v any) { cfg.Chat.MaxHistory = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.MaxHistory },
	},
	{
		key: "log.level", typ: kString, env: "SPROUT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "SPROUT_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
	{
		key: "telemetry.enabled", typ: kBool, env: "SPROUT_TELEMETRY_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Telemetry.Enabled },
	},
	{
		key: "telemetry.otlp_endpoint", typ: kString, env: "SPROUT_TELEMETRY_OTLP_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.OTLPEndpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Telemetry.OTLPEndpoint },
	},
	{
		key: "telemetry.service_name", typ: kString, env: "SPROUT_TELEMETRY_SERVICE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.ServiceName = v.(string) },
		extract: func(cfg Config) any { return cfg.Telemetry.ServiceName },
	},
}

// splitList parses a comma-separated list, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (t keyType) String() string {
	switch t {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kStringList:
		return "comma-separated list"
	default:
		return "string"
	}
}

// parse converts a raw string from an env var or the command line.
func (t keyType) parse(raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case kBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case kFloat:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case kStringList:
		return splitList(raw), nil
	default:
		return raw, nil
	}
}

// fromFile converts a decoded JSON value. Quoted values are accepted for
// every type so hand-edited files may write "8080" or "true".
func (t keyType) fromFile(v any) (any, error) {
	if s, ok := v.(string); ok {
		return t.parse(s)
	}
	switch t {
	case kInt:
		if f, ok := v.(float64); ok && f == math.Trunc(f) && f >= math.MinInt && f <= math.MaxInt {
			return int(f), nil
		}
	case kFloat:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case kBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case kStringList:
		if arr, ok := v.([]any); ok {
			out := make([]string, 0, len(arr))
			for _, e := range arr {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("list element %v is not a string", e)
				}
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%v is not a valid %s", v, t)
}

// applyBackend applies every non-secret key present in b. A value of the
// wrong type is an error rather than silently ignored.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok := b.Lookup(s.key)
		if !ok {
			continue
		}
		v, err := s.typ.fromFile(raw)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typ, s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
