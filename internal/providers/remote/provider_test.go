package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"releasefinder/internal/domain"
)

func newTestProvider(t *testing.T, server *httptest.Server, rps float64) *Provider {
	t.Helper()
	provider, err := NewProvider(Config{
		Engine:            domain.EngineDiscogs,
		Endpoint:          server.URL + "/discogs/",
		UserAgent:         "test-agent",
		RequestsPerSecond: rps,
		Retry:             fastRetry(3),
		Client:            server.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestSearchReleasesDecodesCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discogs/releases" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("q") != "burial untrue" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`[{"id":"1","artist":"Burial","title":"Untrue","date":"2007","parentId":"9","score":90,"trackCount":13,"groupHead":true}]`))
	}))
	defer server.Close()

	items, err := newTestProvider(t, server, 0).SearchReleases(context.Background(), " burial untrue ")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one candidate, got %d", len(items))
	}
	item := items[0]
	if item.ID != "1" || item.ParentID != "9" || item.Score != 90 || item.TrackCount != 13 || !item.GroupHead {
		t.Fatalf("unexpected candidate %#v", item)
	}
}

func TestSearchReleasesAcceptsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":"a","title":"A"},{"id":"b","title":"B"}]}`))
	}))
	defer server.Close()

	items, err := newTestProvider(t, server, 0).SearchReleases(context.Background(), "x")
	if err != nil || len(items) != 2 {
		t.Fatalf("expected two candidates, got %d (%v)", len(items), err)
	}
}

func TestSearchReleasesRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	items, err := newTestProvider(t, server, 0).SearchReleases(context.Background(), "x")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(items) != 0 || hits.Load() != 2 {
		t.Fatalf("expected empty result after 2 hits, got %d items and %d hits", len(items), hits.Load())
	}
}

func TestSearchReleasesSurfacesClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestProvider(t, server, 0).SearchReleases(context.Background(), "x")
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d hits", hits.Load())
	}
}

func TestTracksTrimsAndEscapes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/discogs/releases/a%2Fb/tracks" {
			t.Errorf("unexpected path %q", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"tracks":[" Intro ","","Outro"]}`))
	}))
	defer server.Close()

	tracks, err := newTestProvider(t, server, 0).Tracks(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	if len(tracks) != 2 || tracks[0] != "Intro" || tracks[1] != "Outro" {
		t.Fatalf("unexpected tracks %v", tracks)
	}
}

func TestRateLimitPacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	provider := newTestProvider(t, server, 10)
	startedAt := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := provider.SearchReleases(context.Background(), "x"); err != nil {
			t.Fatalf("search: %v", err)
		}
	}
	if elapsed := time.Since(startedAt); elapsed < 150*time.Millisecond {
		t.Fatalf("expected pacing at 10 rps, three calls took %s", elapsed)
	}
}

func TestNewProviderValidatesConfig(t *testing.T) {
	if _, err := NewProvider(Config{Endpoint: "http://localhost"}); err == nil {
		t.Fatalf("expected error without engine")
	}
	if _, err := NewProvider(Config{Engine: domain.EngineBandcamp, Endpoint: "not a url"}); err == nil {
		t.Fatalf("expected error for invalid endpoint")
	}
}
