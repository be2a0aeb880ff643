package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Profile describes layered config sources. SecretsPath is applied after
// BasePath so credentials can live in a separate file.
type Profile struct {
	BasePath     string
	SecretsPath  string
	AllowMissing bool
}

// LoadFromFile loads configuration from a JSON file into the base config.
func LoadFromFile(path string, base Config) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return base, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&base); err != nil {
		return base, err
	}
	return base, nil
}

// Load applies defaults, the profile files, then the environment, and validates the result.
func Load(profile Profile) (Config, error) {
	cfg := Default()
	var err error
	for _, path := range []string{profile.BasePath, profile.SecretsPath} {
		if path == "" {
			continue
		}
		next, err := LoadFromFile(path, cfg)
		if err != nil {
			if profile.AllowMissing && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return cfg, err
		}
		cfg = next
	}
	cfg, err = LoadFromEnv(cfg)
	if err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
