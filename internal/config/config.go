package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config collects the process settings. Everything comes from the
// environment, optionally via a .env file.
type Config struct {
	// ListenAddr is the HTTP listen address
	ListenAddr string
	// LocalStorePath is the directory for the local mirror store
	LocalStorePath string
	// DrainInterval is the retry-queue drain period
	DrainInterval time.Duration
	// WriteAPIURL is the authenticated write endpoint; empty skips the
	// first rung of the write ladder
	WriteAPIURL string
	// WriteAPIToken authenticates against WriteAPIURL
	WriteAPIToken string
	// ContentAPIURL is the remote content API; empty keeps the buffer
	// on bundled and emergency content
	ContentAPIURL string
}

// Load reads configuration from the environment. A missing .env file is
// fine; explicit environment variables always win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		LocalStorePath: getEnv("LOCAL_STORE_PATH", "data/localstore"),
		DrainInterval:  5 * time.Second,
		WriteAPIURL:    os.Getenv("WRITE_API_URL"),
		WriteAPIToken:  os.Getenv("WRITE_API_TOKEN"),
		ContentAPIURL:  os.Getenv("CONTENT_API_URL"),
	}

	if raw := os.Getenv("DRAIN_INTERVAL_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.DrainInterval = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
