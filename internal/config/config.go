package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Upstream LMS API the service fetches assessments from and submits to.
	UpstreamAPIURL   string
	UpstreamAPIToken string

	DatabaseURL string
	RedisURL    string
	ArchiveTTL  time.Duration

	// Essay submissions are always archived locally; when true they are
	// also forwarded to the upstream API.
	EssayUpstreamSubmit bool

	Casdoor CasdoorConfig
	Events  EventConfig
}

type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

func LoadConfig() (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		UpstreamAPIURL:   getEnv("UPSTREAM_API_URL", "http://localhost:9000"),
		UpstreamAPIToken: getEnv("UPSTREAM_API_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		ArchiveTTL:  getDurationEnv("ARCHIVE_TTL", 30*24*time.Hour),

		EssayUpstreamSubmit: getBoolEnv("ESSAY_UPSTREAM_SUBMIT", false),

		Casdoor: CasdoorConfig{
			Endpoint:         getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:         getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret:     getEnv("CASDOOR_CLIENT_SECRET", ""),
			Certificate:      getEnv("CASDOOR_CERTIFICATE", ""),
			OrganizationName: getEnv("CASDOOR_ORGANIZATION", ""),
			ApplicationName:  getEnv("CASDOOR_APPLICATION", ""),
		},

		Events: EventConfig{
			Enabled:         getBoolEnv("EVENTS_ENABLED", false),
			Publisher:       getEnv("EVENTS_PUBLISHER", "kafka"),
			KafkaBrokers:    getEnv("KAFKA_BROKERS", "localhost:9092"),
			SubmissionTopic: getEnv("SUBMISSION_TOPIC", "attempt-submissions"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokers, ",")
}
