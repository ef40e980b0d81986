package search

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"releasefinder/internal/domain"
	"releasefinder/internal/metrics"
)

// EnrichTracks attaches the provider tracklist to a cached release. Concurrent calls
// for the same id share one provider request; a release that already has tracks is
// returned without calling the provider. Provider failures are logged and the
// release is returned unchanged.
func (s *Service) EnrichTracks(ctx context.Context, id string) (domain.CanonicalRelease, error) {
	release, err := s.Release(id)
	if err != nil {
		return domain.CanonicalRelease{}, err
	}
	if len(release.TrackTitles) > 0 {
		metrics.EnrichmentsTotal.WithLabelValues("cached").Inc()
		return release, nil
	}
	provider, ok := s.providers[release.Engine]
	if !ok {
		return release, nil
	}

	value, _, _ := s.enrich.Do(release.ID, func() (any, error) {
		if current, ok := s.releases.get(release.ID); ok && len(current.TrackTitles) > 0 {
			return current, nil
		}
		return s.fetchTracks(ctx, provider, release), nil
	})
	return value.(domain.CanonicalRelease), nil
}

func (s *Service) fetchTracks(ctx context.Context, provider Provider, release domain.CanonicalRelease) domain.CanonicalRelease {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	runCtx, span := s.tracer.Start(runCtx, "search.tracks", trace.WithAttributes(
		attribute.String("provider", string(release.Engine)),
		attribute.String("release", release.ID),
	))
	defer span.End()

	startedAt := time.Now()
	tracks, err := provider.Tracks(runCtx, release.ProviderID)
	if err != nil {
		span.RecordError(err)
		metrics.EnrichmentsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("tracklist enrichment failed",
			slog.String("provider", string(release.Engine)),
			slog.String("release", release.ID),
			slog.Int64("elapsedMs", time.Since(startedAt).Milliseconds()),
			slog.String("error", err.Error()),
		)
		return release
	}
	if len(tracks) == 0 {
		metrics.EnrichmentsTotal.WithLabelValues("empty").Inc()
		return release
	}

	updated, ok := s.releases.attachTracks(release.ID, tracks)
	if !ok {
		// Cleared while the request was in flight.
		release.TrackTitles = append([]string(nil), tracks...)
		return release
	}
	metrics.EnrichmentsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("tracks", len(updated.TrackTitles)))
	return updated
}
