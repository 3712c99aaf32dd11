package cmd

import (
	"github.com/firefly-engineering/algod-proxy/internal/config"
)

// dotEnvFile is read from the working directory before the config is built.
const dotEnvFile = ".env"

// loadConfig builds the effective configuration from .env, the optional
// --config file and the environment. Flags are applied by the caller.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

// baseURL is where a local client reaches the proxy described by cfg.
func baseURL(cfg *config.Config) string {
	return "http://" + cfg.ListenAddr()
}
