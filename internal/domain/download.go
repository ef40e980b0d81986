package domain

type FileItem struct {
	Filename        string `json:"filename"`
	SizeBytes       int64  `json:"sizeBytes"`
	BitRate         int    `json:"bitRate,omitempty"`
	BitDepth        int    `json:"bitDepth,omitempty"`
	SampleRate      int    `json:"sampleRate,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type DownloadOption struct {
	ID                string            `json:"id"`
	SourceName        string            `json:"sourceName"`
	DistributorName   string            `json:"distributorName"`
	TotalSizeMB       int               `json:"totalSizeMb"`
	Files             []FileItem        `json:"files,omitempty"`
	TechnicalMetadata map[string]string `json:"technicalMetadata,omitempty"`
}

type Suitability int

const (
	SuitabilityPerfect Suitability = iota
	SuitabilityGood
	SuitabilityWarning
	SuitabilityBad
)

// Better reports whether s ranks strictly above other.
func (s Suitability) Better(other Suitability) bool {
	return s < other
}

func (s Suitability) String() string {
	switch s {
	case SuitabilityPerfect:
		return "perfect"
	case SuitabilityGood:
		return "good"
	case SuitabilityWarning:
		return "warning"
	default:
		return "bad"
	}
}

func (s Suitability) Glyph() string {
	switch s {
	case SuitabilityPerfect:
		return "🟢"
	case SuitabilityGood:
		return "🟡"
	case SuitabilityWarning:
		return "🟠"
	default:
		return "🔴"
	}
}

func (s Suitability) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type OptionReport struct {
	Option      DownloadOption `json:"option"`
	Suitability Suitability    `json:"suitability"`
	Glyph       string         `json:"glyph"`
}

type AnalysisResult struct {
	ReleaseID      string         `json:"releaseId"`
	Engine         DownloadEngine `json:"engine"`
	Reports        []OptionReport `json:"reports"`
	AutoDownload   bool           `json:"autoDownload"`
	FallbackEngine DownloadEngine `json:"fallbackEngine,omitempty"`
}
