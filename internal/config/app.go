package config

import (
	"log"
	"os"
	"sync"
	"time"
)

type AppConfig struct {
	Name      string
	Env       string
	Port      string
	BaseURL   string
	LogLevel  string
	LogFormat string
	// RateLimit requests per client within RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

var (
	appConfig *AppConfig
	appOnce   sync.Once
)

func LoadAppConfig() *AppConfig {
	appOnce.Do(func() {
		appConfig = newAppConfig()
	})
	return appConfig
}

func newAppConfig() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
		log.Printf("Warning: APP_ENV not set, defaulting to %s", env)
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" && env != "production" {
		format = "console"
	}
	return &AppConfig{
		Name:       getEnv("APP_NAME", "jobmatch"),
		Env:        env,
		Port:       getEnv("APP_PORT", ":8080"),
		BaseURL:    os.Getenv("APP_URL"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  format,
		RateLimit:  getEnvInt("RATE_LIMIT_MAX", 50),
		RateWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}
