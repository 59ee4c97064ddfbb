package config

import (
	"os"
	"strconv"
	"strings"
)

type Postgres struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

type Config struct {
	Port           string
	Timezone       string
	DefaultBoothID int
	AllowedOrigins []string
	LogLevel       string
	MQTTBrokerURL  string
	MQTTClientID   string
	MQTTTopic      string
	Postgres       Postgres
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func Load() Config {
	origins := strings.Split(env("CORS_ALLOWED_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return Config{
		Port:           env("RETENTION_SERVICE_PORT", "8080"),
		Timezone:       env("RETENTION_TIMEZONE", "Asia/Kolkata"),
		DefaultBoothID: envInt("RETENTION_DEFAULT_BOOTH", 1),
		AllowedOrigins: origins,
		LogLevel:       env("LOG_LEVEL", "info"),
		MQTTBrokerURL:  strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTClientID:   env("RETENTION_MQTT_CLIENT_ID", "retention-service"),
		MQTTTopic:      env("RETENTION_MQTT_TOPIC", "booths/+/scans"),
		Postgres: Postgres{
			User:     env("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   env("POSTGRES_DB", "retention"),
			Host:     env("POSTGRES_HOST", "localhost"),
			Port:     env("POSTGRES_PORT", "5432"),
			SSLMode:  env("POSTGRES_SSLMODE", "disable"),
		},
	}
}
