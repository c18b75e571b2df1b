package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBPort       string
	AppPort      string
	AppEnv       string
	JWTSecret    string
	RabbitMQURL  string
	BrokerBuffer int
	CORSOrigin   string
	WSBuffer     int
	InternalKey  string

	// Metrics are exported only when OTLPEndpoint is set.
	OTLPEndpoint    string
	OTLPInsecure    bool
	MetricsInterval time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:       os.Getenv("DB_HOST"),
		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       os.Getenv("DB_NAME"),
		DBPort:       os.Getenv("DB_PORT"),
		AppPort:      getEnv("APP_PORT", "8080"),
		AppEnv:       os.Getenv("APP_ENV"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		BrokerBuffer: getEnvInt("BROKER_BUFFER", 256),
		CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:3000"),
		WSBuffer:     getEnvInt("WS_BUFFER", 64),
		InternalKey:  os.Getenv("INTERNAL_API_KEY"),

		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:    os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		MetricsInterval: time.Duration(getEnvInt("METRICS_INTERVAL_SECONDS", 60)) * time.Second,
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
