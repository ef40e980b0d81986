package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"releasefinder/internal/domain"
	"releasefinder/internal/metrics"
)

// Result is one completed search. An empty Releases slice is a normal outcome.
type Result struct {
	Engine   domain.SearchEngine
	Query    string
	Releases []domain.CanonicalRelease
}

// Search runs query against engine when one is given, otherwise walks the configured
// engines in preference order and stops at the first non-empty result. When every
// engine comes back empty the result carries the last engine tried.
func (s *Service) Search(ctx context.Context, query string, engine domain.SearchEngine) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, domain.ErrInvalidQuery
	}

	if engine != "" {
		provider, ok := s.providers[engine]
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", domain.ErrUnknownEngine, engine)
		}
		return Result{Engine: engine, Query: query, Releases: s.searchProvider(ctx, provider, query)}, nil
	}

	engines := s.Engines()
	if len(engines) == 0 {
		return Result{}, fmt.Errorf("%w: no providers configured", domain.ErrUnknownEngine)
	}
	result := Result{Query: query}
	for _, current := range engines {
		result.Engine = current
		result.Releases = s.searchProvider(ctx, s.providers[current], query)
		if len(result.Releases) > 0 {
			break
		}
	}
	return result, nil
}

// Escalate reruns query against the first configured engine strictly after current.
// It returns domain.ErrTerminalEscalation when current is already the deepest one.
func (s *Service) Escalate(ctx context.Context, current domain.SearchEngine, query string) (Result, error) {
	next, ok := s.nextEngine(current)
	if !ok {
		return Result{}, domain.ErrTerminalEscalation
	}
	metrics.EscalationsTotal.WithLabelValues(string(current), string(next)).Inc()
	return s.Search(ctx, query, next)
}

// HasDeeperEngine reports whether Escalate from current would reach another engine.
func (s *Service) HasDeeperEngine(current domain.SearchEngine) bool {
	_, ok := s.nextEngine(current)
	return ok
}

func (s *Service) nextEngine(current domain.SearchEngine) (domain.SearchEngine, bool) {
	engine := current
	for {
		next, ok := domain.NextSearchEngine(engine)
		if !ok {
			return "", false
		}
		if _, configured := s.providers[next]; configured {
			return next, true
		}
		engine = next
	}
}

// searchProvider calls one provider and aggregates its candidates. Failures and
// blocked providers yield zero releases.
func (s *Service) searchProvider(ctx context.Context, provider Provider, query string) []domain.CanonicalRelease {
	engine := provider.Engine()
	now := time.Now()
	if blocked, until, lastErr := s.isProviderBlocked(engine, now); blocked {
		s.logger.Warn("provider blocked, skipping",
			slog.String("provider", string(engine)),
			slog.String("until", until.UTC().Format(time.RFC3339)),
			slog.String("lastError", lastErr),
		)
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	runCtx, span := s.tracer.Start(runCtx, "search.provider", trace.WithAttributes(
		attribute.String("provider", string(engine)),
		attribute.String("query", query),
	))
	defer span.End()

	startedAt := time.Now()
	candidates, err := s.callProvider(runCtx, provider, query)
	elapsed := time.Since(startedAt)
	s.recordProviderResult(engine, query, err, elapsed, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("provider search failed",
			slog.String("provider", string(engine)),
			slog.String("query", query),
			slog.Int64("elapsedMs", elapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	releases := s.releases.storeAll(Aggregate(engine, s.policies[engine], candidates))
	metrics.ReleasesAggregated.WithLabelValues(string(engine)).Observe(float64(len(releases)))
	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("releases", len(releases)),
	)
	s.logger.Info("provider search completed",
		slog.String("provider", string(engine)),
		slog.String("query", query),
		slog.Int("candidates", len(candidates)),
		slog.Int("releases", len(releases)),
		slog.Int64("elapsedMs", elapsed.Milliseconds()),
	)
	return releases
}

// callProvider converts adapter panics into errors so one misbehaving adapter
// cannot take down a multi-provider search.
func (s *Service) callProvider(ctx context.Context, provider Provider, query string) (candidates []domain.RawCandidate, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			candidates = nil
			err = fmt.Errorf("%w: panic: %v", ErrProviderFailure, recovered)
		}
	}()
	candidates, err = provider.SearchReleases(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	return candidates, nil
}

// Release returns the cached canonical release for id.
func (s *Service) Release(id string) (domain.CanonicalRelease, error) {
	release, ok := s.releases.get(strings.TrimSpace(id))
	if !ok {
		return domain.CanonicalRelease{}, fmt.Errorf("%w: %s", domain.ErrReleaseNotFound, id)
	}
	return release, nil
}

// Releases resolves ids in order, skipping ids that are no longer cached.
func (s *Service) Releases(ids []string) []domain.CanonicalRelease {
	out := make([]domain.CanonicalRelease, 0, len(ids))
	for _, id := range ids {
		if release, ok := s.releases.get(id); ok {
			out = append(out, release)
		}
	}
	return out
}

// ClearReleases drops every cached release.
func (s *Service) ClearReleases() {
	s.releases.clear()
}

func (s *Service) CachedReleases() int {
	return s.releases.len()
}
