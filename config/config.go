package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type AppConfig struct {
	DatabaseURL        string
	RabbitMQURL        string
	RedisSentinelHosts string
	RedisMasterName    string
	RedisUrl           string
	JobFile            string
	LogLevel           string
	StatsInterval      time.Duration
	StatsBatchLines    int
	ServiceName        string
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	config := &AppConfig{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		RedisSentinelHosts: os.Getenv("REDIS_SENTINEL_HOSTS"),
		RedisMasterName:    os.Getenv("REDIS_MASTER"),
		RedisUrl:           os.Getenv("OVERRIDE_REDIS_URL"), // optional, for local dev
		JobFile:            os.Getenv("FUZZ_JOB_FILE"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		StatsInterval:      parseDuration(os.Getenv("STATS_INTERVAL"), 1*time.Second),
		StatsBatchLines:    parseInt(os.Getenv("STATS_BATCH_LINES"), 100),
		ServiceName:        os.Getenv("SERVICE_NAME"),
	}

	if config.LogLevel == "" {
		config.LogLevel = "info" // Set default log level
	}

	if config.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}
	if config.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL environment variable is required")
	}
	if config.RedisUrl == "" && config.RedisSentinelHosts == "" {
		logger.Fatal("REDIS_SENTINEL_HOSTS or OVERRIDE_REDIS_URL environment variable is required")
	}
	if config.JobFile == "" {
		logger.Fatal("FUZZ_JOB_FILE environment variable is required")
	}
	if config.ServiceName == "" {
		config.ServiceName = "dsfuzz" // Default service name
	}

	return config
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
