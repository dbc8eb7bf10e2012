package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	PORT                  string
	POSTGRES_CONNECTION   string
	REDIS_DB_URL          string
	REDIS_PASSWORD        string
	KAFKA_BROKERS         []string
	TOPOLOGY_FILE         string
	DEFAULT_SLOT_CAPACITY int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	return &Config{
		PORT:                  getEnv("PORT", "8080"),
		POSTGRES_CONNECTION:   getEnv("POSTGRES_CONNECTION", ""),
		REDIS_DB_URL:          getEnv("REDIS_DB_URL", ""),
		REDIS_PASSWORD:        getEnv("REDIS_PASSWORD", ""),
		KAFKA_BROKERS:         getEnvList("KAFKA_BROKERS"),
		TOPOLOGY_FILE:         getEnv("TOPOLOGY_FILE", "topology.yaml"),
		DEFAULT_SLOT_CAPACITY: getEnvInt("DEFAULT_SLOT_CAPACITY", 1200),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
