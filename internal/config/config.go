// Package config exposes environment-backed configuration for the portal
// gateway. A .env file in the working directory is honored when present.
package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	GateConfig
	ServerConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type GateConfig interface {
	GetBackendURL() string
	GetVerifyTimeout() string
}

type ServerConfig interface {
	GetAllowedOrigins() []string
	GetLoginRateLimitRPM() int
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	// Missing .env is fine: plain environment variables still apply.
	_ = godotenv.Load()
	return mainConfig{}
}
