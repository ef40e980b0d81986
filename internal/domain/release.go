package domain

// RawCandidate is one provider record before grouping. Only lives for one aggregation pass.
type RawCandidate struct {
	ID         string   `json:"id"`
	Artist     string   `json:"artist"`
	Title      string   `json:"title"`
	Date       string   `json:"date,omitempty"`
	ParentID   string   `json:"parentId,omitempty"`
	CoverURL   string   `json:"coverUrl,omitempty"`
	Score      int      `json:"score"`
	Type       string   `json:"type,omitempty"`
	GroupHead  bool     `json:"groupHead,omitempty"`
	Status     string   `json:"status,omitempty"`
	TrackCount int      `json:"trackCount,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Label      string   `json:"label,omitempty"`
}

// Official reports whether the provider marked the record as an official release.
// Records without a status are treated as official.
func (c RawCandidate) Official() bool {
	switch c.Status {
	case "", "official", "Official", "OFFICIAL":
		return true
	default:
		return false
	}
}

type CanonicalRelease struct {
	ID                     string       `json:"id"`
	Engine                 SearchEngine `json:"engine"`
	ProviderID             string       `json:"providerId"`
	ParentID               string       `json:"parentId,omitempty"`
	Artist                 string       `json:"artist"`
	Title                  string       `json:"title"`
	RelevanceScore         int          `json:"relevanceScore"`
	Years                  []string     `json:"years,omitempty"`
	Types                  []string     `json:"types,omitempty"`
	MinTracks              int          `json:"minTracks"`
	MaxTracks              int          `json:"maxTracks"`
	TotalCandidatesInGroup int          `json:"totalCandidatesInGroup"`
	TrackTitles            []string     `json:"trackTitles,omitempty"`
	Tags                   []string     `json:"tags,omitempty"`
	CoverURL               string       `json:"coverUrl,omitempty"`
	Label                  string       `json:"label,omitempty"`
}

// NewestYear returns the last entry of Years, or "" when the year is unknown.
func (r CanonicalRelease) NewestYear() string {
	if len(r.Years) == 0 {
		return ""
	}
	return r.Years[len(r.Years)-1]
}

// ExpectedTracks is the track count download options are measured against.
func (r CanonicalRelease) ExpectedTracks() int {
	if r.MinTracks > 0 {
		return r.MinTracks
	}
	return len(r.TrackTitles)
}

// Clone returns a copy that shares no slices with r.
func (r CanonicalRelease) Clone() CanonicalRelease {
	out := r
	out.Years = append([]string(nil), r.Years...)
	out.Types = append([]string(nil), r.Types...)
	out.TrackTitles = append([]string(nil), r.TrackTitles...)
	out.Tags = append([]string(nil), r.Tags...)
	return out
}
