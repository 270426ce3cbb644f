package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Document DocumentConfig
	Upstream UpstreamConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RelayLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DocumentConfig struct {
	OutputDir      string
	FilenamePrefix string
	Extension      string
	FontName       string
	FontSizePt     float64
	SessionTTL     time.Duration
	IngestTimeout  time.Duration
	OpenArtifacts  bool
	OpenTopic      string
}

type UpstreamConfig struct {
	WorkflowURL string
	APIKey      string
	IdleTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret string // empty disables token-derived session keys
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			RelayLogFilePath:   getEnv("RELAY_LOG_FILE_PATH", "logs/generation.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Document: DocumentConfig{
			OutputDir:      getEnv("DOCUMENT_OUTPUT_DIR", "output"),
			FilenamePrefix: getEnv("DOCUMENT_FILENAME_PREFIX", "水土保持方案"),
			Extension:      getEnv("DOCUMENT_EXTENSION", ".docx"),
			FontName:       getEnv("DOCUMENT_FONT_NAME", "宋体"),
			FontSizePt:     getEnvAsFloat("DOCUMENT_FONT_SIZE_PT", 10.5),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", time.Hour),
			IngestTimeout:  getEnvAsDuration("INGEST_TIMEOUT", 30*time.Second),
			OpenArtifacts:  getEnvAsBool("OPEN_ARTIFACTS", false),
			OpenTopic:      getEnv("ARTIFACT_OPEN_TOPIC", "ARTIFACT_FINALIZED"),
		},
		Upstream: UpstreamConfig{
			WorkflowURL: getEnv("DIFY_API_URL", "http://localhost/v1/workflows/run"),
			APIKey:      getEnv("DIFY_API_KEY", ""),
			IdleTimeout: getEnvAsDuration("UPSTREAM_IDLE_TIMEOUT", 120*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs := getEnvAsInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
