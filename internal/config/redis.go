package config

import (
	"os"
	"strconv"
)

// RedisConfig carries the connection settings for the cache client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GetRedisConfig reads Redis settings from the environment with local
// development defaults. An unparseable REDIS_DB falls back to 0.
func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
