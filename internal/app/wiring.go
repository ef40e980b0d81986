package app

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"releasefinder/internal/providers/remote"
	"releasefinder/internal/search"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT values.
func NewLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuildProviders creates one remote adapter per configured engine. Engines with
// an invalid endpoint are skipped and logged.
func BuildProviders(cfg Config, logger *slog.Logger) []search.Provider {
	configured := cfg.ConfiguredProviders()
	providers := make([]search.Provider, 0, len(configured))
	for _, item := range configured {
		provider, err := remote.NewProvider(remote.Config{
			Engine:            item.Engine,
			Endpoint:          item.Endpoint,
			UserAgent:         cfg.UserAgent,
			RequestsPerSecond: item.RequestsPerSecond,
			Client: &http.Client{
				Timeout:   cfg.RequestTimeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
		})
		if err != nil {
			logger.Warn("provider disabled",
				slog.String("provider", string(item.Engine)),
				slog.String("error", err.Error()),
			)
			continue
		}
		providers = append(providers, provider)
	}
	return providers
}
