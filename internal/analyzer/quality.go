package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"releasefinder/internal/domain"
)

// formatTierKeys are the technical metadata keys a tier code may arrive under.
var formatTierKeys = []string{"format_id", "formatId", "quality"}

// qualityTiered handles lossless catalog sources where every listing is an
// official release and only the delivery tier varies.
type qualityTiered struct {
	engine domain.DownloadEngine
}

func (q qualityTiered) Engine() domain.DownloadEngine { return q.engine }

func (q qualityTiered) Analyze(options []domain.DownloadOption, _ domain.CanonicalRelease) []domain.OptionReport {
	reports := make([]domain.OptionReport, 0, len(options))
	if len(options) == 0 {
		return reports
	}
	for _, option := range options {
		reports = append(reports, newReport(option, domain.SuitabilityPerfect))
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return tierPriority(formatTier(reports[i].Option)) > tierPriority(formatTier(reports[j].Option))
	})
	return reports
}

func (q qualityTiered) ShouldAutoDownload(reports []domain.OptionReport) bool {
	return len(reports) == 1
}

func (q qualityTiered) FormatConfirmation(report domain.OptionReport, expected domain.CanonicalRelease) string {
	tier := tierLabel(formatTier(report.Option))
	return fmt.Sprintf("%s Downloading %s from %s (%s)", report.Glyph, releaseLine(expected), q.engine.Label(), tier)
}

func (q qualityTiered) FallbackEngine() (domain.DownloadEngine, bool) {
	return domain.DownloadEngineSoulseek, true
}

func formatTier(option domain.DownloadOption) string {
	for _, key := range formatTierKeys {
		if value := strings.TrimSpace(option.TechnicalMetadata[key]); value != "" {
			return value
		}
	}
	return ""
}

// tierPriority ranks delivery tiers highest resolution first. Unknown tiers rank 0.
func tierPriority(code string) int {
	switch code {
	case "27":
		return 4
	case "7":
		return 3
	case "6":
		return 2
	case "5":
		return 1
	default:
		return 0
	}
}

func tierLabel(code string) string {
	switch code {
	case "27":
		return "24-bit up to 192 kHz"
	case "7":
		return "24-bit up to 96 kHz"
	case "6":
		return "16-bit 44.1 kHz"
	case "5":
		return "MP3 320"
	default:
		return "unknown quality"
	}
}
