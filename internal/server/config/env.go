package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays IDENTITY_* environment variables onto config. Unset
// variables leave the current value in place. Malformed values (for example a
// duration that does not parse) panic, like the other layers.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
