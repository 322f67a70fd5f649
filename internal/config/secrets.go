package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "sprout", "secrets.json")
}

var errSecretNotFound = errors.New("secret not found")

// secretFile is the on-disk layout: {service: {account: value}}.
type secretFile map[string]map[string]string

func readSecretFile(path string) (secretFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sf := secretFile{}
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return sf, nil
}

func secretGet(service, account string) ([]byte, error) {
	sf, err := readSecretFile(secretsFilePath())
	if err != nil {
		return nil, err
	}
	val, ok := sf[service][account]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", service, account, errSecretNotFound)
	}
	return []byte(val), nil
}

// SetSecret stores one account under the sprout service, owner-readable only.
// An unreadable or corrupt file is replaced.
func SetSecret(account, value string) error {
	path := secretsFilePath()
	sf, err := readSecretFile(path)
	if err != nil {
		sf = secretFile{}
	}
	if sf[secretService] == nil {
		sf[secretService] = map[string]string{}
	}
	sf[secretService][account] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
