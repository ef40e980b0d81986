package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"releasefinder/internal/domain"
)

type Config struct {
	HTTPAddr           string
	RequestTimeout     time.Duration
	LogLevel           string
	LogFormat          string
	UserAgent          string
	Providers          []ProviderConfig
	RedisURL           string
	TaskQueueKey       string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	FolderLLM          bool
	EnrichConcurrency  int
	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
	OTLPEndpoint       string
}

// ProviderConfig describes one metadata adapter sidecar. An empty endpoint
// leaves the engine unconfigured.
type ProviderConfig struct {
	Engine            domain.SearchEngine
	Endpoint          string
	RequestsPerSecond float64
}

// LoadConfig reads the environment, after loading a .env file from the working
// directory when one exists.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8095"),
		RequestTimeout: time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("PROVIDER_USER_AGENT", "releasefinder/1.0"),
		Providers: []ProviderConfig{
			{
				Engine:            domain.EngineMusicBrainz,
				Endpoint:          normalizeEndpoint(getEnv("PROVIDER_MUSICBRAINZ_ENDPOINT", "")),
				RequestsPerSecond: getEnvFloat("PROVIDER_MUSICBRAINZ_RPS", 1),
			},
			{
				Engine:            domain.EngineDiscogs,
				Endpoint:          normalizeEndpoint(getEnv("PROVIDER_DISCOGS_ENDPOINT", "")),
				RequestsPerSecond: getEnvFloat("PROVIDER_DISCOGS_RPS", 1),
			},
			{
				Engine:            domain.EngineBandcamp,
				Endpoint:          normalizeEndpoint(getEnv("PROVIDER_BANDCAMP_ENDPOINT", "")),
				RequestsPerSecond: getEnvFloat("PROVIDER_BANDCAMP_RPS", 2),
			},
		},
		RedisURL:           getEnv("REDIS_URL", ""),
		TaskQueueKey:       getEnv("TASK_QUEUE_KEY", "releasefinder:tasks"),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		FolderLLM:          getEnvBool("FOLDER_LLM_ENABLED", true),
		EnrichConcurrency:  getEnvInt("ENRICH_CONCURRENCY", 4),
		HTTPRateLimitRPS:   getEnvFloat("HTTP_RATE_LIMIT_RPS", 50),
		HTTPRateLimitBurst: getEnvInt("HTTP_RATE_LIMIT_BURST", 100),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// ConfiguredProviders returns the providers that have an endpoint, in engine order.
func (c Config) ConfiguredProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, provider := range c.Providers {
		if provider.Endpoint != "" {
			out = append(out, provider)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func normalizeEndpoint(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "http://" + value
	}
	return strings.TrimRight(value, "/")
}
