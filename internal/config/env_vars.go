package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	folderEnvVar  = "FOLDER"
	backendURLVar = "BACKEND_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}
var _ GateConfig = EnvVars{}
var _ ServerConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Portal Gate")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBackendURL returns the base URL of the internship-portal backend that
// issues and verifies tokens.
func (EnvVars) GetBackendURL() string {
	return GetEnv(backendURLVar, "http://localhost:5000")
}

// GetVerifyTimeout returns the bound on background token verification, as a
// time.ParseDuration string.
func (EnvVars) GetVerifyTimeout() string {
	return GetEnv("VERIFY_TIMEOUT", "10s")
}

func (EnvVars) GetAllowedOrigins() []string {
	raw := GetEnv("CORS_ORIGINS", "")
	if raw == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// GetLoginRateLimitRPM returns the per-client login attempt budget per
// minute.
func (EnvVars) GetLoginRateLimitRPM() int {
	raw := GetEnv("LOGIN_RATE_LIMIT_RPM", "10")
	rpm, err := strconv.Atoi(raw)
	if err != nil || rpm <= 0 {
		return 10
	}
	return rpm
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
