package analyzer

import (
	"fmt"
	"strings"
	"testing"

	"releasefinder/internal/domain"
)

func qobuzOption(id, tier string) domain.DownloadOption {
	return domain.DownloadOption{
		ID:                id,
		SourceName:        "qobuz",
		TechnicalMetadata: map[string]string{"format_id": tier},
	}
}

func peerOption(id string, files int, ext string) domain.DownloadOption {
	option := domain.DownloadOption{ID: id, SourceName: "soulseek", DistributorName: "user-" + id, TotalSizeMB: 420}
	for i := 0; i < files; i++ {
		option.Files = append(option.Files, domain.FileItem{Filename: fmt.Sprintf(`Music\Album\%02d - Track.%s`, i+1, ext)})
	}
	option.Files = append(option.Files, domain.FileItem{Filename: `Music\Album\cover.jpg`})
	return option
}

func expectedRelease(tracks int) domain.CanonicalRelease {
	return domain.CanonicalRelease{ID: "musicbrainz:r1", Artist: "Artist", Title: "Album", MinTracks: tracks, MaxTracks: tracks}
}

// ---------------------------------------------------------------------------
// Quality-tiered
// ---------------------------------------------------------------------------

func TestQualityTieredOrdersByTierAndMarksPerfect(t *testing.T) {
	a := For(domain.DownloadEngineQobuz)
	reports := a.Analyze([]domain.DownloadOption{qobuzOption("cd", "6"), qobuzOption("hires", "27")}, expectedRelease(10))

	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Option.ID != "hires" || reports[1].Option.ID != "cd" {
		t.Fatalf("expected tier 27 first, got %s, %s", reports[0].Option.ID, reports[1].Option.ID)
	}
	for _, report := range reports {
		if report.Suitability != domain.SuitabilityPerfect {
			t.Fatalf("expected PERFECT, got %s", report.Suitability)
		}
		if report.Glyph != domain.SuitabilityPerfect.Glyph() {
			t.Fatalf("glyph mismatch for %s", report.Option.ID)
		}
	}
	if a.ShouldAutoDownload(reports) {
		t.Fatalf("two options must not auto-download")
	}
}

func TestQualityTieredAutoDownloadsSingleOption(t *testing.T) {
	a := For(domain.DownloadEngineQobuz)
	reports := a.Analyze([]domain.DownloadOption{qobuzOption("only", "7")}, expectedRelease(10))
	if !a.ShouldAutoDownload(reports) {
		t.Fatalf("exactly one option should auto-download")
	}
	if fallback, ok := a.FallbackEngine(); !ok || fallback != domain.DownloadEngineSoulseek {
		t.Fatalf("expected soulseek fallback, got %q %v", fallback, ok)
	}
}

func TestQualityTieredUnknownTierSortsLast(t *testing.T) {
	a := For(domain.DownloadEngineQobuz)
	reports := a.Analyze([]domain.DownloadOption{
		qobuzOption("unknown", "99"),
		qobuzOption("mp3", "5"),
		{ID: "bare", SourceName: "qobuz"},
		qobuzOption("hires96", "7"),
	}, expectedRelease(10))

	got := make([]string, 0, len(reports))
	for _, report := range reports {
		got = append(got, report.Option.ID)
	}
	if strings.Join(got, ",") != "hires96,mp3,unknown,bare" {
		t.Fatalf("unexpected order %v", got)
	}
}

// ---------------------------------------------------------------------------
// Peer network
// ---------------------------------------------------------------------------

func TestPeerClassification(t *testing.T) {
	cases := []struct {
		name   string
		option domain.DownloadOption
		want   domain.Suitability
	}{
		{name: "lossless exact", option: peerOption("a", 10, "flac"), want: domain.SuitabilityPerfect},
		{name: "lossless bonus tracks", option: peerOption("b", 13, "flac"), want: domain.SuitabilityGood},
		{name: "lossless one missing", option: peerOption("c", 9, "flac"), want: domain.SuitabilityWarning},
		{name: "lossy exact", option: peerOption("d", 10, "mp3"), want: domain.SuitabilityWarning},
		{name: "lossy far off", option: peerOption("e", 3, "mp3"), want: domain.SuitabilityWarning},
		{name: "lossless far short", option: peerOption("f", 5, "flac"), want: domain.SuitabilityBad},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyPeerOption(tc.option, 10); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPeerSuitabilityOrdering(t *testing.T) {
	exact := classifyPeerOption(peerOption("exact", 12, "flac"), 12)
	offByFive := classifyPeerOption(peerOption("short", 7, "flac"), 12)
	lossyExact := classifyPeerOption(peerOption("lossy", 12, "mp3"), 12)

	if !exact.Better(offByFive) {
		t.Fatalf("exact lossless (%s) must beat a diff of 5 (%s)", exact, offByFive)
	}
	if offByFive.Better(lossyExact) {
		t.Fatalf("a diff of 5 (%s) must rank no better than lossy exact (%s)", offByFive, lossyExact)
	}
}

func TestPeerAnalyzeSortsBestFirstAndNeverAutoDownloads(t *testing.T) {
	a := For(domain.DownloadEngineSoulseek)
	reports := a.Analyze([]domain.DownloadOption{
		peerOption("bad", 2, "flac"),
		peerOption("warn", 10, "mp3"),
		peerOption("perfect", 10, "flac"),
		peerOption("good", 11, "flac"),
	}, expectedRelease(10))

	got := make([]string, 0, len(reports))
	for _, report := range reports {
		got = append(got, report.Option.ID)
	}
	if strings.Join(got, ",") != "perfect,good,warn,bad" {
		t.Fatalf("unexpected order %v", got)
	}
	if a.ShouldAutoDownload(reports[:1]) {
		t.Fatalf("peer listings must never auto-download")
	}
	if _, ok := a.FallbackEngine(); ok {
		t.Fatalf("peer engine has no fallback")
	}
}

func TestPeerLosslessThreshold(t *testing.T) {
	files := make([]domain.FileItem, 0, 10)
	for i := 0; i < 9; i++ {
		files = append(files, domain.FileItem{Filename: fmt.Sprintf("%d.flac", i)})
	}
	files = append(files, domain.FileItem{Filename: "bonus.mp3"})
	if isLossless(files) {
		t.Fatalf("90%% lossless is not above the threshold")
	}
	files[9] = domain.FileItem{Filename: "bonus.m4a", BitDepth: 24}
	if !isLossless(files) {
		t.Fatalf("bit depth should mark a file lossless")
	}
	if isLossless(nil) {
		t.Fatalf("no audio files cannot be lossless")
	}
}

func TestPeerBitDepthDoesNotMakeLossyFilesLossless(t *testing.T) {
	cases := []struct {
		name string
		file domain.FileItem
		want bool
	}{
		{name: "mp3 with bit depth", file: domain.FileItem{Filename: "01.mp3", BitDepth: 16}, want: false},
		{name: "ogg with bit depth", file: domain.FileItem{Filename: "01.ogg", BitDepth: 24}, want: false},
		{name: "m4a with bit depth", file: domain.FileItem{Filename: "01.m4a", BitDepth: 16}, want: true},
		{name: "m4a with low bit depth", file: domain.FileItem{Filename: "01.m4a", BitDepth: 8}, want: false},
		{name: "m4a without bit depth", file: domain.FileItem{Filename: "01.m4a"}, want: false},
		{name: "flac without bit depth", file: domain.FileItem{Filename: "01.flac"}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isLosslessFile(tc.file); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}

	option := peerOption("mp3", 10, "mp3")
	for i := range option.Files {
		option.Files[i].BitDepth = 16
	}
	if got := classifyPeerOption(option, 10); got != domain.SuitabilityWarning {
		t.Fatalf("mp3 listing with bit depth: got %s, want %s", got, domain.SuitabilityWarning)
	}
}

func TestPeerUsesTracklistWhenBoundsUnknown(t *testing.T) {
	expected := domain.CanonicalRelease{TrackTitles: []string{"a", "b", "c"}}
	if got := classifyPeerOption(peerOption("x", 3, "flac"), expected.ExpectedTracks()); got != domain.SuitabilityPerfect {
		t.Fatalf("expected PERFECT against tracklist length, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// Trivial engines and factory
// ---------------------------------------------------------------------------

func TestTrivialEnginesKeepOrderAndMarkGood(t *testing.T) {
	for _, engine := range []domain.DownloadEngine{domain.DownloadEngineBandcamp, domain.DownloadEngineYouTube} {
		a := For(engine)
		reports := a.Analyze([]domain.DownloadOption{{ID: "2"}, {ID: "1"}}, expectedRelease(0))
		if reports[0].Option.ID != "2" || reports[1].Option.ID != "1" {
			t.Fatalf("%s: order must be preserved", engine)
		}
		for _, report := range reports {
			if report.Suitability != domain.SuitabilityGood {
				t.Fatalf("%s: expected GOOD, got %s", engine, report.Suitability)
			}
		}
		if _, ok := a.FallbackEngine(); ok {
			t.Fatalf("%s: trivial engines have no fallback", engine)
		}
	}
}

func TestEmptyBatchYieldsEmptyReports(t *testing.T) {
	for _, engine := range []domain.DownloadEngine{domain.DownloadEngineQobuz, domain.DownloadEngineSoulseek, domain.DownloadEngineBandcamp} {
		reports := For(engine).Analyze(nil, expectedRelease(10))
		if reports == nil || len(reports) != 0 {
			t.Fatalf("%s: expected empty non-nil reports, got %#v", engine, reports)
		}
	}

	result := Run("", nil, expectedRelease(10))
	if len(result.Reports) != 0 || result.AutoDownload || result.Engine != "" {
		t.Fatalf("unexpected result for empty batch: %#v", result)
	}
}

func TestRunEmptyBatchSuggestsFallback(t *testing.T) {
	result := Run(domain.DownloadEngineQobuz, []domain.DownloadOption{}, expectedRelease(10))
	if len(result.Reports) != 0 || result.AutoDownload {
		t.Fatalf("empty batch must not be classified: %#v", result)
	}
	if result.Engine != domain.DownloadEngineQobuz || result.FallbackEngine != domain.DownloadEngineSoulseek {
		t.Fatalf("expected qobuz with soulseek fallback, got engine=%q fallback=%q", result.Engine, result.FallbackEngine)
	}

	for _, engine := range []domain.DownloadEngine{domain.DownloadEngineSoulseek, domain.DownloadEngineBandcamp} {
		if got := Run(engine, nil, expectedRelease(10)); got.FallbackEngine != "" {
			t.Fatalf("%s: expected no fallback, got %q", engine, got.FallbackEngine)
		}
	}
}

func TestRunExplicitEngineOverridesSourceName(t *testing.T) {
	result := Run(domain.DownloadEngineQobuz, []domain.DownloadOption{
		{ID: "a", SourceName: "mirror", TechnicalMetadata: map[string]string{"format_id": "6"}},
		{ID: "b", SourceName: "mirror", TechnicalMetadata: map[string]string{"format_id": "27"}},
	}, expectedRelease(10))
	if result.Engine != domain.DownloadEngineQobuz || result.Reports[0].Option.ID != "b" {
		t.Fatalf("expected qobuz tier ordering, got %#v", result)
	}
}

func TestRunSelectsAnalyzerByBatchEngineAndAssignsIDs(t *testing.T) {
	result := Run("", []domain.DownloadOption{{SourceName: "Qobuz", TechnicalMetadata: map[string]string{"format_id": "6"}}}, expectedRelease(10))
	if result.Engine != domain.DownloadEngineQobuz {
		t.Fatalf("expected qobuz engine, got %q", result.Engine)
	}
	if !result.AutoDownload {
		t.Fatalf("single qobuz option should auto-download")
	}
	if result.FallbackEngine != domain.DownloadEngineSoulseek {
		t.Fatalf("expected soulseek fallback, got %q", result.FallbackEngine)
	}
	if result.Reports[0].Option.ID == "" {
		t.Fatalf("missing option id should be generated")
	}
	if result.ReleaseID != "musicbrainz:r1" {
		t.Fatalf("unexpected release id %q", result.ReleaseID)
	}
}

func TestUnknownEngineFallsBackToPeerRules(t *testing.T) {
	if _, ok := For("usenet").(peerNetwork); !ok {
		t.Fatalf("unknown engines should use peer rules")
	}
}

func TestFormatConfirmation(t *testing.T) {
	release := expectedRelease(10)

	qobuz := For(domain.DownloadEngineQobuz)
	text := qobuz.FormatConfirmation(qobuz.Analyze([]domain.DownloadOption{qobuzOption("x", "27")}, release)[0], release)
	if !strings.Contains(text, "Artist – Album") || !strings.Contains(text, "Qobuz") || !strings.Contains(text, "192 kHz") {
		t.Fatalf("unexpected qobuz confirmation %q", text)
	}

	peer := For(domain.DownloadEngineSoulseek)
	text = peer.FormatConfirmation(peer.Analyze([]domain.DownloadOption{peerOption("p", 10, "flac")}, release)[0], release)
	if !strings.Contains(text, "10 audio files") || !strings.Contains(text, "420 MB") || !strings.Contains(text, "user-p") {
		t.Fatalf("unexpected peer confirmation %q", text)
	}
}
