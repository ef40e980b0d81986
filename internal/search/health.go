package search

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"releasefinder/internal/domain"
	"releasefinder/internal/metrics"
)

// A provider that fails providerFailureThreshold searches in a row is skipped
// until its block expires. Each further failure doubles the block.
const (
	providerFailureThreshold = 3
	providerBlockBase        = 2 * time.Minute
	providerBlockMax         = 15 * time.Minute
)

type providerHealth struct {
	streak       int
	blockedUntil time.Time
	lastError    string
	lastSuccess  time.Time
	lastFailure  time.Time
	lastLatency  time.Duration
	lastTimeout  bool
	lastQuery    string
	requests     int64
	failures     int64
	timeouts     int64
}

// observe folds one search outcome into the state and returns the metric status
// label for it.
func (h *providerHealth) observe(query string, err error, latency time.Duration, now time.Time) string {
	h.requests++
	h.lastQuery = strings.TrimSpace(query)
	if latency > 0 {
		h.lastLatency = latency
	}
	h.lastTimeout = isTimeoutLikeError(err)
	if h.lastTimeout {
		h.timeouts++
	}

	if err == nil {
		h.streak = 0
		h.blockedUntil = time.Time{}
		h.lastError = ""
		h.lastSuccess = now
		return "ok"
	}

	h.streak++
	h.failures++
	h.lastFailure = now
	h.lastError = err.Error()
	if h.streak >= providerFailureThreshold {
		h.blockedUntil = now.Add(exponentialBlockDuration(h.streak))
	}
	if h.lastTimeout {
		return "timeout"
	}
	return "error"
}

func (h *providerHealth) blockedAt(now time.Time) bool {
	return !h.blockedUntil.IsZero() && !now.After(h.blockedUntil)
}

func (h *providerHealth) fill(item *domain.ProviderDiagnostics) {
	item.ConsecutiveFailures = h.streak
	item.BlockedUntil = optionalTime(h.blockedUntil)
	item.LastError = h.lastError
	item.LastSuccessAt = optionalTime(h.lastSuccess)
	item.LastFailureAt = optionalTime(h.lastFailure)
	item.LastLatencyMS = h.lastLatency.Milliseconds()
	item.LastTimeout = h.lastTimeout
	item.LastQuery = h.lastQuery
	item.TotalRequests = h.requests
	item.TotalFailures = h.failures
	item.TimeoutCount = h.timeouts
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Service) isProviderBlocked(engine domain.SearchEngine, now time.Time) (bool, time.Time, string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state, ok := s.health[engine]
	if !ok || !state.blockedAt(now) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (s *Service) recordProviderResult(engine domain.SearchEngine, query string, err error, latency time.Duration, now time.Time) {
	s.healthMu.Lock()
	state, ok := s.health[engine]
	if !ok {
		state = &providerHealth{}
		s.health[engine] = state
	}
	status := state.observe(query, err, latency, now)
	blocked := state.blockedAt(now)
	s.healthMu.Unlock()

	name := string(engine)
	metrics.ProviderRequestsTotal.WithLabelValues(name, status).Inc()
	if latency > 0 {
		metrics.ProviderRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}
	switch {
	case err == nil:
		metrics.ProviderAvailable.WithLabelValues(name).Set(1)
	case blocked:
		metrics.ProviderAvailable.WithLabelValues(name).Set(0)
	}
}

// exponentialBlockDuration is providerBlockBase doubled once per failure past the
// threshold, capped at providerBlockMax.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	block := providerBlockBase
	for extra := consecutiveFailures - providerFailureThreshold; extra > 0; extra-- {
		block *= 2
		if block >= providerBlockMax {
			return providerBlockMax
		}
	}
	return block
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

// ProviderDiagnostics reports the health of every configured provider in
// preference order.
func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	infos := s.Providers()
	if len(infos) == 0 {
		return nil
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.ProviderDiagnostics, len(infos))
	for i, info := range infos {
		items[i] = domain.ProviderDiagnostics{
			Engine:  info.Engine,
			Label:   info.Label,
			Kind:    info.Kind,
			Enabled: info.Enabled,
		}
		if state, ok := s.health[info.Engine]; ok {
			state.fill(&items[i])
		}
	}
	return items
}
