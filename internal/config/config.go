// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string // listen address
	BaseURL       string // public board URL join/host links are built on
	SongsFile     string // JSON corpus path; empty uses the embedded corpus
	DatabaseURL   string // Postgres DSN for the songs table; overrides SongsFile
	RedisAddr     string // if set, room state lives in Redis instead of memory
	RedisPassword string
	DefaultRounds int
	Points        int // awarded per correct answer
}

func Load() (Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := Config{
		Addr:          getenv("SONGBUZZ_ADDR", ":8080"),
		BaseURL:       getenv("SONGBUZZ_BASE_URL", "http://localhost:8080"),
		SongsFile:     os.Getenv("SONGBUZZ_SONGS_FILE"),
		DatabaseURL:   os.Getenv("SONGBUZZ_DATABASE_URL"),
		RedisAddr:     os.Getenv("SONGBUZZ_REDIS_ADDR"),
		RedisPassword: os.Getenv("SONGBUZZ_REDIS_PASSWORD"),
	}

	var err error
	if cfg.DefaultRounds, err = getint("SONGBUZZ_DEFAULT_ROUNDS", 5); err != nil {
		return Config{}, err
	}
	if cfg.Points, err = getint("SONGBUZZ_POINTS", 10); err != nil {
		return Config{}, err
	}

	if cfg.DefaultRounds < 1 {
		return Config{}, errors.New("SONGBUZZ_DEFAULT_ROUNDS must be at least 1")
	}
	if cfg.Points < 1 {
		return Config{}, errors.New("SONGBUZZ_POINTS must be at least 1")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return Config{}, fmt.Errorf("invalid SONGBUZZ_BASE_URL: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
