package apihttp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxProxiedCoverBytes = 10 << 20
	maxCoverRedirects    = 5
)

var (
	errBlockedHost = errors.New("blocked url host")
	blockedHosts   = map[string]struct{}{
		"localhost":      {},
		"redis":          {},
		"releasefinder":  {},
		"otel-collector": {},
	}
	blockedSuffixes = []string{".local", ".localhost", ".internal"}
)

// coverError is an upstream failure reported to the client as a JSON error.
type coverError struct {
	status  int
	message string
}

func (e *coverError) Error() string { return e.message }

// handleCoverProxy fetches release artwork on behalf of chat clients that cannot
// reach the cover hosts directly.
func (s *Server) handleCoverProxy(w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(strings.TrimSpace(r.URL.Query().Get("url")))
	if err != nil || target.String() == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing or invalid url")
		return
	}
	if err := validateProxyURL(r.Context(), target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := s.fetchCover(r.Context(), target)
	if err != nil {
		var cerr *coverError
		if !errors.As(err, &cerr) {
			cerr = &coverError{status: http.StatusBadGateway, message: "failed to fetch cover"}
		}
		writeError(w, cerr.status, "upstream_error", cerr.message)
		return
	}
	defer resp.Body.Close()

	body := bufio.NewReaderSize(io.LimitReader(resp.Body, maxProxiedCoverBytes), 512)
	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		sniff, _ := body.Peek(512)
		contentType = http.DetectContentType(sniff)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(w, http.StatusBadGateway, "upstream_error", "not an image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (s *Server) fetchCover(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &coverError{status: http.StatusBadRequest, message: "invalid url"}
	}
	req.Header.Set("User-Agent", "releasefinder/1.0")
	req.Header.Set("Accept", "image/avif,image/webp,image/*;q=0.9,*/*;q=0.5")

	resp, err := s.covers.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, &coverError{status: http.StatusBadGateway, message: fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode)}
	case resp.ContentLength > maxProxiedCoverBytes:
		resp.Body.Close()
		return nil, &coverError{status: http.StatusRequestEntityTooLarge, message: "cover too large"}
	}
	return resp, nil
}

// newCoverProxyClient refuses to connect to blocked addresses at dial time, so
// hostnames that resolve to internal networks and redirects into them fail too.
func newCoverProxyClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   8 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if isBlockedIP(net.ParseIP(host)) {
				return errBlockedHost
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   12 * time.Second,
		Transport: otelhttp.NewTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxCoverRedirects {
				return fmt.Errorf("stopped after %d redirects", maxCoverRedirects)
			}
			return validateProxyURL(req.Context(), req.URL)
		},
	}
}

// validateProxyURL accepts http(s) URLs whose host is neither an internal
// service name nor a literal blocked address. Resolved addresses are checked
// when the client dials.
func validateProxyURL(_ context.Context, u *url.URL) error {
	if u == nil {
		return errors.New("invalid url")
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return errors.New("unsupported url scheme")
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return errors.New("invalid url host")
	}
	if _, ok := blockedHosts[host]; ok {
		return errBlockedHost
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return errBlockedHost
		}
	}
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return errBlockedHost
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	return ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast()
}
