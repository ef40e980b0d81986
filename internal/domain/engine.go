package domain

import "strings"

type SearchEngine string

const (
	EngineMusicBrainz SearchEngine = "musicbrainz"
	EngineDiscogs     SearchEngine = "discogs"
	EngineBandcamp    SearchEngine = "bandcamp"
)

// SearchEngineOrder is the fixed preference order used by search and escalation.
var SearchEngineOrder = []SearchEngine{
	EngineMusicBrainz,
	EngineDiscogs,
	EngineBandcamp,
}

func (e SearchEngine) Label() string {
	switch e {
	case EngineMusicBrainz:
		return "MusicBrainz"
	case EngineDiscogs:
		return "Discogs"
	case EngineBandcamp:
		return "Bandcamp"
	default:
		return string(e)
	}
}

// NextSearchEngine returns the engine strictly after current in SearchEngineOrder.
func NextSearchEngine(current SearchEngine) (SearchEngine, bool) {
	for i, engine := range SearchEngineOrder {
		if engine == current && i+1 < len(SearchEngineOrder) {
			return SearchEngineOrder[i+1], true
		}
	}
	return "", false
}

func ParseSearchEngine(raw string) (SearchEngine, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "musicbrainz", "mb":
		return EngineMusicBrainz, true
	case "discogs", "dc":
		return EngineDiscogs, true
	case "bandcamp", "bc":
		return EngineBandcamp, true
	default:
		return "", false
	}
}

type DownloadEngine string

const (
	DownloadEngineQobuz    DownloadEngine = "qobuz"
	DownloadEngineSoulseek DownloadEngine = "soulseek"
	DownloadEngineBandcamp DownloadEngine = "bandcamp"
	DownloadEngineYouTube  DownloadEngine = "youtube"
)

func (e DownloadEngine) Label() string {
	switch e {
	case DownloadEngineQobuz:
		return "Qobuz"
	case DownloadEngineSoulseek:
		return "Soulseek"
	case DownloadEngineBandcamp:
		return "Bandcamp"
	case DownloadEngineYouTube:
		return "YouTube Music"
	default:
		return string(e)
	}
}

func ParseDownloadEngine(raw string) DownloadEngine {
	return DownloadEngine(strings.ToLower(strings.TrimSpace(raw)))
}
