package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadSecretFile reads a secret from path, as mounted by container secret
// stores. Surrounding whitespace is dropped; an empty secret is an error.
func LoadSecretFile(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("secret file not found: %s", path)
	}

	content, err := os.ReadFile(path) // #nosec G304 - path comes from the environment by design
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	secret := strings.TrimSpace(string(content))
	if err := ValidateSecret(secret); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	return secret, nil
}

// ValidateSecret ensures a secret is non-empty after trimming whitespace.
func ValidateSecret(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("secret is empty")
	}
	return nil
}

// secretFromEnv returns the value of key, or the content of the file named
// by key_FILE when key is unset.
func secretFromEnv(key string) (string, error) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value, nil
	}
	if path := strings.TrimSpace(os.Getenv(key + "_FILE")); path != "" {
		return LoadSecretFile(path)
	}
	return "", nil
}
