package analyzer

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"releasefinder/internal/domain"
)

const losslessShareThreshold = 0.9

var audioExtensions = map[string]struct{}{
	"flac": {}, "alac": {}, "ape": {}, "wav": {}, "aiff": {}, "aif": {}, "wv": {},
	"mp3": {}, "m4a": {}, "aac": {}, "ogg": {}, "opus": {}, "wma": {},
}

var losslessExtensions = map[string]struct{}{
	"flac": {}, "alac": {}, "ape": {}, "wav": {}, "aiff": {}, "aif": {}, "wv": {},
}

// lossyExtensions never carry lossless audio. m4a is left out since it may hold ALAC.
var lossyExtensions = map[string]struct{}{
	"mp3": {}, "aac": {}, "ogg": {}, "opus": {}, "wma": {},
}

// minLosslessBitDepth is the lowest reported bit depth taken as a lossless hint.
const minLosslessBitDepth = 16

// peerNetwork handles untrusted listings from shared user folders. Options are
// judged on format and on how far their track count is from the release.
type peerNetwork struct {
	engine domain.DownloadEngine
}

func (p peerNetwork) Engine() domain.DownloadEngine { return p.engine }

func (p peerNetwork) Analyze(options []domain.DownloadOption, expected domain.CanonicalRelease) []domain.OptionReport {
	reports := make([]domain.OptionReport, 0, len(options))
	if len(options) == 0 {
		return reports
	}
	expectedTracks := expected.ExpectedTracks()
	for _, option := range options {
		reports = append(reports, newReport(option, classifyPeerOption(option, expectedTracks)))
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Suitability.Better(reports[j].Suitability)
	})
	return reports
}

// ShouldAutoDownload is always false: peer listings need a human choice.
func (p peerNetwork) ShouldAutoDownload([]domain.OptionReport) bool {
	return false
}

func (p peerNetwork) FormatConfirmation(report domain.OptionReport, expected domain.CanonicalRelease) string {
	option := report.Option
	source := strings.TrimSpace(option.DistributorName)
	if source == "" {
		source = "unknown user"
	}
	return fmt.Sprintf("%s Downloading %s: %d audio files, %s from %s via %s",
		report.Glyph,
		releaseLine(expected),
		countAudioFiles(option.Files),
		humanMegabytes(option.TotalSizeMB),
		source,
		p.engine.Label(),
	)
}

func (p peerNetwork) FallbackEngine() (domain.DownloadEngine, bool) {
	return "", false
}

func classifyPeerOption(option domain.DownloadOption, expectedTracks int) domain.Suitability {
	audio := audioFiles(option.Files)
	lossless := isLossless(audio)
	diff := len(audio) - expectedTracks

	switch {
	case lossless && diff == 0:
		return domain.SuitabilityPerfect
	case lossless && diff > 0:
		return domain.SuitabilityGood
	case absInt(diff) <= 2 || !lossless:
		return domain.SuitabilityWarning
	default:
		return domain.SuitabilityBad
	}
}

// isLossless reports whether more than 90% of the audio files are lossless.
func isLossless(audio []domain.FileItem) bool {
	if len(audio) == 0 {
		return false
	}
	lossless := 0
	for _, file := range audio {
		if isLosslessFile(file) {
			lossless++
		}
	}
	return float64(lossless)/float64(len(audio)) > losslessShareThreshold
}

// isLosslessFile trusts a lossless extension. A reported bit depth only counts for
// extensions that can hold lossless audio.
func isLosslessFile(file domain.FileItem) bool {
	ext := fileExtension(file.Filename)
	if _, ok := losslessExtensions[ext]; ok {
		return true
	}
	if _, ok := lossyExtensions[ext]; ok {
		return false
	}
	return file.BitDepth >= minLosslessBitDepth
}

func audioFiles(files []domain.FileItem) []domain.FileItem {
	out := make([]domain.FileItem, 0, len(files))
	for _, file := range files {
		if _, ok := audioExtensions[fileExtension(file.Filename)]; ok {
			out = append(out, file)
		}
	}
	return out
}

func countAudioFiles(files []domain.FileItem) int {
	return len(audioFiles(files))
}

func fileExtension(name string) string {
	// Peer listings use Windows separators as often as not.
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
