package config

import "go.uber.org/fx"

func provide() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Module wires validated application configuration.
var Module = fx.Module("config",
	fx.Provide(provide),
)
