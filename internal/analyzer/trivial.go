package analyzer

import (
	"fmt"

	"releasefinder/internal/domain"
)

// trivial handles single-quality catalog sources: every option is acceptable and
// the provider order is kept.
type trivial struct {
	engine domain.DownloadEngine
}

func (t trivial) Engine() domain.DownloadEngine { return t.engine }

func (t trivial) Analyze(options []domain.DownloadOption, _ domain.CanonicalRelease) []domain.OptionReport {
	reports := make([]domain.OptionReport, 0, len(options))
	for _, option := range options {
		reports = append(reports, newReport(option, domain.SuitabilityGood))
	}
	return reports
}

func (t trivial) ShouldAutoDownload(reports []domain.OptionReport) bool {
	return len(reports) == 1
}

func (t trivial) FormatConfirmation(report domain.OptionReport, expected domain.CanonicalRelease) string {
	return fmt.Sprintf("%s Downloading %s from %s", report.Glyph, releaseLine(expected), t.engine.Label())
}

func (t trivial) FallbackEngine() (domain.DownloadEngine, bool) {
	return "", false
}
