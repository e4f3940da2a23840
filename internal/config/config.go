package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the service settings, all sourced from the environment.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	LogJSON  bool
	SeedDemo bool
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		DBPath:   getEnv("DB_PATH", "caja.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  os.Getenv("LOG_JSON") == "1",
		SeedDemo: os.Getenv("SEED_DEMO_DATA") == "1",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewLogger builds the shared logrus logger.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
