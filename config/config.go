package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/facturalo/go-afip-facturador/afip"
)

var logger = logrus.WithField("component", "config")

// Config holds all process configuration. The AFIP environment is an
// explicit value threaded into construction, never ambient state.
type Config struct {
	Address        string
	Environment    afip.Environment
	TicketCacheDir string
	RequestTimeout time.Duration
	Debug          bool
}

// Load reads configuration from the environment, with an optional .env
// file for local runs.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	cfg := &Config{
		Address:        getEnv("LISTEN_ADDRESS", ":8080"),
		TicketCacheDir: getEnv("TICKET_CACHE_DIR", "/tmp/afip_ticket_cache"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 90)) * time.Second,
		Debug:          getEnvBool("DEBUG", false),
	}

	if raw, ok := os.LookupEnv("AFIP_ENV"); ok {
		if err := cfg.Environment.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
	} else {
		cfg.Environment = afip.Homologation
		logger.Warn("AFIP_ENV not set, defaulting to homologation")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logger.Warnf("%s is not an integer, using default %d", key, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
