package pager

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"releasefinder/internal/domain"
)

const (
	DefaultPageSize = 3
	maxTags         = 5
)

// coverArtArchiveTemplate resolves a MusicBrainz release group id to its front cover.
const coverArtArchiveTemplate = "https://coverartarchive.org/release-group/%s/front-250"

type Builder struct {
	pageSize       int
	coverTemplates map[domain.SearchEngine]string
}

type Option func(*Builder)

func WithPageSize(size int) Option {
	return func(b *Builder) {
		if size > 0 {
			b.pageSize = size
		}
	}
}

// WithCoverTemplate sets the fmt template used to derive a cover URL from a
// release's parent id when the provider supplied none.
func WithCoverTemplate(engine domain.SearchEngine, template string) Option {
	return func(b *Builder) {
		template = strings.TrimSpace(template)
		if template == "" {
			delete(b.coverTemplates, engine)
			return
		}
		b.coverTemplates[engine] = template
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		pageSize: DefaultPageSize,
		coverTemplates: map[domain.SearchEngine]string{
			domain.EngineMusicBrainz: coverArtArchiveTemplate,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) PageSize() int {
	return b.pageSize
}

// Bounds returns the [start, end) slice of a result list of length total that
// page index covers. It fails with domain.ErrNoResults for an empty list and
// domain.ErrEndOfResults when index is past the last page.
func (b *Builder) Bounds(total, index int) (int, int, error) {
	if total <= 0 {
		return 0, 0, domain.ErrNoResults
	}
	if index < 0 {
		return 0, 0, fmt.Errorf("%w: page %d", domain.ErrEndOfResults, index)
	}
	start := index * b.pageSize
	if start >= total {
		return 0, 0, fmt.Errorf("%w: page %d of %d", domain.ErrEndOfResults, index+1, b.PageCount(total))
	}
	end := start + b.pageSize
	if end > total {
		end = total
	}
	return start, end, nil
}

func (b *Builder) PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + b.pageSize - 1) / b.pageSize
}

// Build renders page index of releases. releases is the full ordered result set.
func (b *Builder) Build(engine domain.SearchEngine, query string, releases []domain.CanonicalRelease, index int, canDigDeeper bool) (domain.Page, error) {
	start, end, err := b.Bounds(len(releases), index)
	if err != nil {
		return domain.Page{}, err
	}

	page := domain.Page{
		Engine:       engine,
		Query:        query,
		Index:        index,
		Total:        len(releases),
		Header:       b.header(engine, query, len(releases), index),
		Items:        make([]domain.ReleaseSummary, 0, end-start),
		CanDigDeeper: canDigDeeper,
	}
	for _, release := range releases[start:end] {
		page.Items = append(page.Items, b.Summary(release))
	}
	if remaining := len(releases) - end; remaining > 0 {
		page.More = &domain.Continuation{NextPage: index + 1, Remaining: remaining}
	}
	return page, nil
}

func (b *Builder) header(engine domain.SearchEngine, query string, total, index int) string {
	if index > 0 {
		return fmt.Sprintf("Page %d of %d", index+1, b.PageCount(total))
	}
	noun := "releases"
	if total == 1 {
		noun = "release"
	}
	return fmt.Sprintf("Found %d %s for %q on %s", total, noun, query, engine.Label())
}

// Summary builds the display record of one release. Empty fields stay empty.
func (b *Builder) Summary(release domain.CanonicalRelease) domain.ReleaseSummary {
	tags := release.Tags
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return domain.ReleaseSummary{
		ID:       release.ID,
		Title:    DisplayCase(release.Title),
		Artist:   DisplayCase(release.Artist),
		Years:    strings.Join(release.Years, ", "),
		Types:    strings.Join(release.Types, ", "),
		Tracks:   TrackCountText(release.MinTracks, release.MaxTracks),
		Tags:     strings.Join(tags, ", "),
		Label:    release.Label,
		CoverURL: b.CoverURL(release),
		Actions:  []domain.Action{
			{Label: "Download", Data: "download:" + release.ID},
			{Label: "Tracks", Data: "tracks:" + release.ID},
		},
	}
}

// CoverURL prefers the stored cover, then a URL derived from the parent id.
func (b *Builder) CoverURL(release domain.CanonicalRelease) string {
	if cover := strings.TrimSpace(release.CoverURL); cover != "" {
		return cover
	}
	template, ok := b.coverTemplates[release.Engine]
	if !ok || strings.TrimSpace(release.ParentID) == "" {
		return ""
	}
	return fmt.Sprintf(template, release.ParentID)
}

func TrackCountText(minTracks, maxTracks int) string {
	switch {
	case minTracks <= 0 && maxTracks <= 0:
		return ""
	case minTracks <= 0:
		minTracks = maxTracks
	case maxTracks <= 0:
		maxTracks = minTracks
	}
	if minTracks == maxTracks {
		if minTracks == 1 {
			return "1 track"
		}
		return fmt.Sprintf("%d tracks", minTracks)
	}
	return fmt.Sprintf("%d–%d tracks", minTracks, maxTracks)
}

// DisplayCase title-cases text that arrived entirely lower- or upper-case and
// leaves mixed-case text as the provider spelled it.
func DisplayCase(text string) string {
	text = strings.TrimSpace(text)
	hasLower, hasUpper := false, false
	for _, r := range text {
		if unicode.IsLower(r) {
			hasLower = true
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	if hasLower == hasUpper {
		return text
	}
	return cases.Title(language.Und).String(text)
}
