package analyzer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"releasefinder/internal/domain"
	"releasefinder/internal/metrics"
)

// Analyzer scores one download engine's option batch against the release the user
// picked. Implementations must return an empty report list for an empty batch.
type Analyzer interface {
	Engine() domain.DownloadEngine
	Analyze(options []domain.DownloadOption, expected domain.CanonicalRelease) []domain.OptionReport
	ShouldAutoDownload(reports []domain.OptionReport) bool
	FormatConfirmation(report domain.OptionReport, expected domain.CanonicalRelease) string
	FallbackEngine() (domain.DownloadEngine, bool)
}

// For returns the analyzer for engine. Unknown engines are treated as untrusted
// peer listings.
func For(engine domain.DownloadEngine) Analyzer {
	switch engine {
	case domain.DownloadEngineQobuz:
		return qualityTiered{engine: engine}
	case domain.DownloadEngineBandcamp, domain.DownloadEngineYouTube:
		return trivial{engine: engine}
	default:
		return peerNetwork{engine: engine}
	}
}

// BatchEngine reports the engine that produced a batch, taken from its first option.
func BatchEngine(options []domain.DownloadOption) domain.DownloadEngine {
	if len(options) == 0 {
		return ""
	}
	return domain.ParseDownloadEngine(options[0].SourceName)
}

// Run analyzes a batch produced by engine, fills in missing option ids and records
// per-suitability metrics. An empty engine is taken from the batch. An empty batch
// still reports the engine and its fallback so the caller can suggest another source.
func Run(engine domain.DownloadEngine, options []domain.DownloadOption, expected domain.CanonicalRelease) domain.AnalysisResult {
	if engine == "" {
		engine = BatchEngine(options)
	}
	a := For(engine)
	result := domain.AnalysisResult{
		ReleaseID: expected.ID,
		Engine:    engine,
		Reports:   []domain.OptionReport{},
	}
	if fallback, ok := a.FallbackEngine(); ok {
		result.FallbackEngine = fallback
	}
	if len(options) == 0 {
		return result
	}

	result.Reports = a.Analyze(withIDs(options), expected)
	result.AutoDownload = a.ShouldAutoDownload(result.Reports)
	for _, report := range result.Reports {
		metrics.OptionReportsTotal.WithLabelValues(string(engine), report.Suitability.String()).Inc()
	}
	return result
}

func withIDs(options []domain.DownloadOption) []domain.DownloadOption {
	out := make([]domain.DownloadOption, len(options))
	copy(out, options)
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}

func newReport(option domain.DownloadOption, suitability domain.Suitability) domain.OptionReport {
	return domain.OptionReport{
		Option:      option,
		Suitability: suitability,
		Glyph:       suitability.Glyph(),
	}
}

func releaseLine(expected domain.CanonicalRelease) string {
	artist := strings.TrimSpace(expected.Artist)
	title := strings.TrimSpace(expected.Title)
	switch {
	case artist != "" && title != "":
		return artist + " – " + title
	case title != "":
		return title
	case artist != "":
		return artist
	default:
		return expected.ID
	}
}

func humanMegabytes(size int) string {
	if size <= 0 {
		return "unknown size"
	}
	if size < 1024 {
		return fmt.Sprintf("%d MB", size)
	}
	return fmt.Sprintf("%.1f GB", float64(size)/1024)
}
