package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"releasefinder/internal/app"
	"releasefinder/internal/domain"
	"releasefinder/internal/search"
)

type fakeProvider struct {
	engine domain.SearchEngine
	items  []domain.RawCandidate
}

func (p fakeProvider) Engine() domain.SearchEngine { return p.engine }
func (p fakeProvider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{Engine: p.engine, Kind: "fake", Enabled: true}
}
func (p fakeProvider) SearchReleases(context.Context, string) ([]domain.RawCandidate, error) {
	return p.items, nil
}
func (p fakeProvider) Tracks(context.Context, string) ([]string, error) { return nil, nil }

func albums(n int) []domain.RawCandidate {
	items := make([]domain.RawCandidate, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.RawCandidate{
			ID:         fmt.Sprint(100 + i),
			Artist:     "Stereolab",
			Title:      fmt.Sprintf("Album %d", i+1),
			Date:       fmt.Sprint(2000 - i),
			Type:       "CD",
			TrackCount: 12,
		})
	}
	return items
}

func runCommand(t *testing.T, providers []search.Provider, stdin string, args ...string) (string, error) {
	t.Helper()
	ctx := newCommandContext()
	ctx.providers = func(app.Config) []search.Provider { return providers }
	cmd := newRootCommandWith(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommandRendersTable(t *testing.T) {
	providers := []search.Provider{
		fakeProvider{engine: domain.EngineMusicBrainz},
		fakeProvider{engine: domain.EngineDiscogs, items: albums(4)},
	}
	out, err := runCommand(t, providers, "", "search", "stereolab")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, want := range []string{"Found 4 releases", "Album 1", "Album 3", "discogs:100", "1 more; use --page 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Album 4") {
		t.Fatalf("first page should hold three releases:\n%s", out)
	}

	out, err = runCommand(t, providers, "", "search", "--page", "2", "stereolab")
	if err != nil {
		t.Fatalf("search page 2: %v", err)
	}
	if !strings.Contains(out, "Page 2 of 2") || !strings.Contains(out, "Album 4") {
		t.Fatalf("unexpected second page:\n%s", out)
	}
}

func TestSearchCommandNoResults(t *testing.T) {
	out, err := runCommand(t, []search.Provider{fakeProvider{engine: domain.EngineDiscogs}}, "", "search", "nothing")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "Nothing found on any source") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSearchCommandRejectsUnknownEngine(t *testing.T) {
	if _, err := runCommand(t, nil, "", "search", "--engine", "spotify", "x"); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}

func TestDigCommand(t *testing.T) {
	providers := []search.Provider{
		fakeProvider{engine: domain.EngineMusicBrainz, items: albums(2)},
		fakeProvider{engine: domain.EngineBandcamp, items: albums(1)},
	}
	out, err := runCommand(t, providers, "", "dig", "stereolab")
	if err != nil {
		t.Fatalf("dig: %v", err)
	}
	if !strings.Contains(out, "on Bandcamp") {
		t.Fatalf("expected bandcamp results:\n%s", out)
	}

	_, err = runCommand(t, providers, "", "dig", "--from", "bandcamp", "stereolab")
	if err == nil || !strings.Contains(err.Error(), "no deeper source") {
		t.Fatalf("expected no deeper source error, got %v", err)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	providers := []search.Provider{fakeProvider{engine: domain.EngineDiscogs, items: albums(4)}}
	options := `[{"id":"q1","sourceName":"qobuz","technicalMetadata":{"format_id":"6"},"totalSizeMb":420}]`

	out, err := runCommand(t, providers, options, "analyze", "--release", "4", "stereolab")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"Stereolab – Album 4", "q1", "420 MB", "would download automatically", "Fallback engine: Soulseek"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCommand(t, providers, options, "analyze", "--release", "9", "stereolab"); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := runCommand(t, providers, "not json", "analyze", "stereolab"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestAnalyzeCommandEmptyBatchSuggestsFallback(t *testing.T) {
	providers := []search.Provider{fakeProvider{engine: domain.EngineDiscogs, items: albums(1)}}

	out, err := runCommand(t, providers, "[]", "analyze", "--engine", "qobuz", "stereolab")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "No download options found on Qobuz. Try Soulseek instead.") {
		t.Fatalf("expected fallback suggestion:\n%s", out)
	}
}

func TestFolderCommand(t *testing.T) {
	providers := []search.Provider{fakeProvider{engine: domain.EngineDiscogs, items: albums(1)}}
	out, err := runCommand(t, providers, "", "folder", "Stereolab - Dots and Loops (1997) [FLAC]")
	if err != nil {
		t.Fatalf("folder: %v", err)
	}
	if !strings.Contains(out, "Artist: Stereolab") || !strings.Contains(out, "Year:   1997") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestProvidersCommandJSON(t *testing.T) {
	providers := []search.Provider{
		fakeProvider{engine: domain.EngineBandcamp},
		fakeProvider{engine: domain.EngineMusicBrainz},
	}
	out, err := runCommand(t, providers, "", "--json", "providers")
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if strings.Index(out, `"musicbrainz"`) > strings.Index(out, `"bandcamp"`) {
		t.Fatalf("providers should be listed in engine order:\n%s", out)
	}
}
