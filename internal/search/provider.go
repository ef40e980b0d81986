package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"releasefinder/internal/domain"
)

var ErrProviderFailure = errors.New("provider failure")

// Provider is the uniform adapter contract for one metadata source. SearchReleases
// may fail; the orchestrator treats a failure as zero results. Tracks may return an
// empty list when the source has no tracklist for the release.
type Provider interface {
	Engine() domain.SearchEngine
	Info() domain.ProviderInfo
	SearchReleases(ctx context.Context, query string) ([]domain.RawCandidate, error)
	Tracks(ctx context.Context, providerID string) ([]string, error)
}

type Service struct {
	providers map[domain.SearchEngine]Provider
	policies  map[domain.SearchEngine]GroupingPolicy
	timeout   time.Duration
	releases  *releaseCache
	enrich    singleflight.Group
	healthMu  sync.Mutex
	health    map[domain.SearchEngine]*providerHealth
	logger    *slog.Logger
	tracer    trace.Tracer
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithGroupingPolicy(engine domain.SearchEngine, policy GroupingPolicy) ServiceOption {
	return func(s *Service) {
		s.policies[engine] = policy
	}
}

func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	registry := make(map[domain.SearchEngine]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		engine := provider.Engine()
		if engine == "" {
			continue
		}
		registry[engine] = provider
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	svc := &Service{
		providers: registry,
		policies:  make(map[domain.SearchEngine]GroupingPolicy, len(registry)),
		timeout:   timeout,
		releases:  newReleaseCache(),
		health:    make(map[domain.SearchEngine]*providerHealth),
		logger:    slog.Default(),
		tracer:    otel.Tracer("releasefinder/search"),
	}
	for engine := range registry {
		svc.policies[engine] = DefaultGroupingPolicy(engine)
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Engines returns the configured engines in preference order.
func (s *Service) Engines() []domain.SearchEngine {
	engines := make([]domain.SearchEngine, 0, len(s.providers))
	for _, engine := range domain.SearchEngineOrder {
		if _, ok := s.providers[engine]; ok {
			engines = append(engines, engine)
		}
	}
	return engines
}

func (s *Service) Providers() []domain.ProviderInfo {
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for _, engine := range s.Engines() {
		info := s.providers[engine].Info()
		info.Engine = engine
		if info.Label == "" {
			info.Label = engine.Label()
		}
		items = append(items, info)
	}
	return items
}
