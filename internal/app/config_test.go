package app

import (
	"testing"
	"time"

	"releasefinder/internal/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "SEARCH_TIMEOUT_SECONDS", "LOG_LEVEL", "LOG_FORMAT", "REDIS_URL",
		"PROVIDER_MUSICBRAINZ_ENDPOINT", "PROVIDER_DISCOGS_ENDPOINT", "PROVIDER_BANDCAMP_ENDPOINT",
		"PROVIDER_BANDCAMP_RPS", "OPENAI_API_KEY", "OPENAI_MODEL", "FOLDER_LLM_ENABLED",
		"HTTP_RATE_LIMIT_RPS", "TASK_QUEUE_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8095" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected log settings %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.TaskQueueKey != "releasefinder:tasks" || cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if !cfg.FolderLLM || cfg.HTTPRateLimitRPS != 50 || cfg.HTTPRateLimitBurst != 100 {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if len(cfg.ConfiguredProviders()) != 0 {
		t.Fatalf("no provider should be configured without endpoints")
	}
	if cfg.Providers[2].RequestsPerSecond != 2 {
		t.Fatalf("unexpected bandcamp rps %v", cfg.Providers[2].RequestsPerSecond)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("SEARCH_TIMEOUT_SECONDS", "5")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PROVIDER_MUSICBRAINZ_ENDPOINT", "")
	t.Setenv("PROVIDER_DISCOGS_ENDPOINT", "discogs-adapter:8080/")
	t.Setenv("PROVIDER_BANDCAMP_ENDPOINT", "https://bandcamp-adapter.example/api/")
	t.Setenv("PROVIDER_DISCOGS_RPS", "0.5")
	t.Setenv("FOLDER_LLM_ENABLED", "off")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":9000" || cfg.RequestTimeout != 5*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
	if cfg.FolderLLM {
		t.Fatalf("FOLDER_LLM_ENABLED=off should disable the collaborator")
	}

	providers := cfg.ConfiguredProviders()
	if len(providers) != 2 {
		t.Fatalf("expected 2 configured providers, got %d", len(providers))
	}
	if providers[0].Engine != domain.EngineDiscogs || providers[0].Endpoint != "http://discogs-adapter:8080" || providers[0].RequestsPerSecond != 0.5 {
		t.Fatalf("unexpected discogs config %#v", providers[0])
	}
	if providers[1].Endpoint != "https://bandcamp-adapter.example/api" {
		t.Fatalf("unexpected bandcamp endpoint %q", providers[1].Endpoint)
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("RF_TEST_INT", "-3")
	t.Setenv("RF_TEST_FLOAT", "fast")
	t.Setenv("RF_TEST_BOOL", "maybe")

	if got := getEnvInt("RF_TEST_INT", 7); got != 7 {
		t.Fatalf("getEnvInt = %d", got)
	}
	if got := getEnvFloat("RF_TEST_FLOAT", 1.5); got != 1.5 {
		t.Fatalf("getEnvFloat = %v", got)
	}
	if got := getEnvBool("RF_TEST_BOOL", true); !got {
		t.Fatalf("getEnvBool = %v", got)
	}
}

func TestBuildProvidersSkipsInvalidEndpoints(t *testing.T) {
	cfg := Config{
		RequestTimeout: time.Second,
		Providers: []ProviderConfig{
			{Engine: domain.EngineMusicBrainz, Endpoint: "http://mb-adapter:8080"},
			{Engine: domain.EngineDiscogs, Endpoint: "http://"},
			{Engine: domain.EngineBandcamp},
		},
	}
	providers := BuildProviders(cfg, NewLogger("error", "text"))
	if len(providers) != 1 || providers[0].Engine() != domain.EngineMusicBrainz {
		t.Fatalf("expected only musicbrainz, got %d providers", len(providers))
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARNING": "WARN", "error": "ERROR", "": "INFO", "loud": "INFO"}
	for in, want := range cases {
		if got := ParseLogLevel(in).String(); got != want {
			t.Fatalf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
