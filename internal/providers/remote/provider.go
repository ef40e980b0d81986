package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"releasefinder/internal/domain"
)

const (
	defaultUserAgent = "releasefinder/1.0"
	maxPayloadBytes  = 4 * 1024 * 1024
)

// Config describes one adapter sidecar. The sidecar does the provider specific
// scraping and answers with already-parsed candidate records.
type Config struct {
	Engine    domain.SearchEngine
	Endpoint  string
	UserAgent string
	// RequestsPerSecond paces calls to the sidecar. Zero disables pacing.
	RequestsPerSecond float64
	Retry             Backoff
	Client            *http.Client
}

type Provider struct {
	engine    domain.SearchEngine
	client    *http.Client
	endpoint  *url.URL
	userAgent string
	limiter   *rate.Limiter
	retry     Backoff
}

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Engine == "" {
		return nil, fmt.Errorf("%w: engine is required", domain.ErrUnknownEngine)
	}
	endpoint, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid %s endpoint %q", cfg.Engine, cfg.Endpoint)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	retry := cfg.Retry
	if retry.Attempts <= 0 {
		retry = DefaultBackoff()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Provider{
		engine:    cfg.Engine,
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
		limiter:   limiter,
		retry:     retry,
	}, nil
}

func (p *Provider) Engine() domain.SearchEngine {
	return p.engine
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Engine:  p.engine,
		Label:   p.engine.Label(),
		Kind:    "remote",
		Enabled: true,
	}
}

type candidatesEnvelope struct {
	Items []domain.RawCandidate `json:"items"`
}

type tracksEnvelope struct {
	Tracks []string `json:"tracks"`
}

func (p *Provider) SearchReleases(ctx context.Context, query string) ([]domain.RawCandidate, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(query))
	payload, err := p.get(ctx, []string{"releases"}, params)
	if err != nil {
		return nil, err
	}
	return parseCandidates(payload)
}

func (p *Provider) Tracks(ctx context.Context, providerID string) ([]string, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, nil
	}
	payload, err := p.get(ctx, []string{"releases", providerID, "tracks"}, nil)
	if err != nil {
		return nil, err
	}
	return parseTracks(payload)
}

func parseCandidates(payload []byte) ([]domain.RawCandidate, error) {
	var items []domain.RawCandidate
	if err := json.Unmarshal(payload, &items); err == nil {
		return items, nil
	}
	var envelope candidatesEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil {
		return envelope.Items, nil
	}
	return nil, fmt.Errorf("unexpected provider payload")
}

func parseTracks(payload []byte) ([]string, error) {
	var raw []string
	if err := json.Unmarshal(payload, &raw); err != nil {
		var envelope tracksEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("unexpected tracklist payload")
		}
		raw = envelope.Tracks
	}
	tracks := make([]string, 0, len(raw))
	for _, title := range raw {
		if title = strings.TrimSpace(title); title != "" {
			tracks = append(tracks, title)
		}
	}
	return tracks, nil
}

func (p *Provider) get(ctx context.Context, segments []string, params url.Values) ([]byte, error) {
	uri := *p.endpoint
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	uri.RawPath = strings.TrimRight(uri.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	uri.Path = strings.TrimRight(uri.Path, "/") + "/" + strings.Join(segments, "/")
	if len(params) > 0 {
		uri.RawQuery = params.Encode()
	}
	target := uri.String()

	var payload []byte
	err := Retry(ctx, p.retry, func() error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		body, err := p.fetch(ctx, target)
		if err != nil {
			return err
		}
		payload = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.engine, err)
	}
	return payload, nil
}

func (p *Provider) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
}

// StatusError is a non-200 reply from the sidecar.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider HTTP %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}
