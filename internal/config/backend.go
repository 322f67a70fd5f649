package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigBackend holds user-set values keyed by dotted config key. Values are
// whatever the store decoded; keyType.fromFile converts them.
type ConfigBackend interface {
	Lookup(key string) (any, bool)
	Set(key string, val any) error
	Delete(key string) error
}

// fileBackend is a flat JSON object, e.g. {"server.port": 5000}.
type fileBackend struct {
	path   string
	values map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]any{}}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(data, &b.values); err != nil || b.values == nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			b.values = map[string]any{}
		}
	}
	return b
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "sprout", "config.json")
}

func (b *fileBackend) Lookup(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

func (b *fileBackend) Set(key string, val any) error {
	b.values[key] = val
	return b.flush()
}

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.values[key]; !ok {
		return nil
	}
	delete(b.values, key)
	return b.flush()
}

func (b *fileBackend) flush() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, append(data, '\n'), 0o600)
}
