package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into the typed Config struct. The custom
	// UnmarshalJSON methods resolve env vars immediately.
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	gateway, ok := rawConfig["gateway"].(map[string]any)
	if !ok {
		return fmt.Errorf("gateway section is required")
	}

	// Secrets must never be inlined in the config file
	if auth, ok := gateway["auth"].(map[string]any); ok {
		if err := requireEnvRef(auth, "signingKey", true); err != nil {
			return err
		}
		if provider, ok := auth["provider"].(map[string]any); ok {
			if err := requireEnvRef(provider, "clientSecret", true); err != nil {
				return err
			}
		}
	}
	if status, ok := gateway["status"].(map[string]any); ok {
		if err := requireEnvRef(status, "password", true); err != nil {
			return err
		}
	}
	if tokenStore, ok := gateway["tokenStore"].(map[string]any); ok {
		if err := requireEnvRef(tokenStore, "redisPassword", false); err != nil {
			return err
		}
	}

	return nil
}

// requireEnvRef checks that a secret-bearing field uses an env reference
func requireEnvRef(section map[string]any, name string, required bool) error {
	value, exists := section[name]
	if !exists {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}

	if _, isString := value.(string); isString {
		return fmt.Errorf("%s must use environment variable reference for security", name)
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
		}
		return nil
	}
	return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
}
