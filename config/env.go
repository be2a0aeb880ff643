package config

import (
	"errors"

	"github.com/joeshaw/envdecode"
)

// LoadFromEnv overlays YAADE_* environment variables onto base. Variables
// that are unset leave the base value untouched.
func LoadFromEnv(base Config) (Config, error) {
	cfg := base
	if err := envdecode.Decode(&cfg); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return base, nil
		}
		return base, err
	}
	return cfg, nil
}
