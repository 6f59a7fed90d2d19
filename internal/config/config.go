package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	RedisAddr string
	JWTSecret string

	// LobbyTimeout is the inactivity window before a lobby is disposed.
	LobbyTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         firstNonEmpty(os.Getenv("PORT"), "8080"),
		RedisAddr:    firstNonEmpty(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		LobbyTimeout: 30 * time.Second,
	}

	if raw := os.Getenv("LOBBY_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, errors.New("invalid LOBBY_TIMEOUT_SECONDS")
		}
		cfg.LobbyTimeout = time.Duration(secs) * time.Second
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("missing JWT_SECRET")
	}

	return cfg, nil
}

func firstNonEmpty(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
