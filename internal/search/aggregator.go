package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"releasefinder/internal/domain"
)

// GroupingPolicy tunes how an engine's raw candidates collapse into canonical releases.
type GroupingPolicy struct {
	// ContentGrouping enables the cover-URL / normalized-title surrogate key for
	// candidates that carry no parent id. Providers that return one record per
	// release (MusicBrainz, Discogs) leave it off so unrelated releases never merge.
	ContentGrouping bool
}

// DefaultGroupingPolicy returns the policy used for an engine when none is configured.
func DefaultGroupingPolicy(engine domain.SearchEngine) GroupingPolicy {
	return GroupingPolicy{ContentGrouping: engine == domain.EngineBandcamp}
}

var yearPrefixPattern = regexp.MustCompile(`^(\d{4})`)

type candidateGroup struct {
	key     string
	members []domain.RawCandidate
}

// Aggregate groups one provider's raw candidates into canonical releases, picks a
// representative per group and returns the releases in display order. The output
// depends only on the input contents, never on map iteration order.
func Aggregate(engine domain.SearchEngine, policy GroupingPolicy, candidates []domain.RawCandidate) []domain.CanonicalRelease {
	if len(candidates) == 0 {
		return nil
	}

	order := make([]string, 0, len(candidates))
	groups := make(map[string]*candidateGroup, len(candidates))
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate.ID) == "" {
			continue
		}
		key := groupKey(candidate, policy)
		group, exists := groups[key]
		if !exists {
			group = &candidateGroup{key: key}
			groups[key] = group
			order = append(order, key)
		}
		group.members = append(group.members, candidate)
	}

	releases := make([]domain.CanonicalRelease, 0, len(order))
	for _, key := range order {
		releases = append(releases, buildRelease(engine, groups[key].members))
	}
	sortReleases(releases)
	return releases
}

func groupKey(candidate domain.RawCandidate, policy GroupingPolicy) string {
	if parent := strings.TrimSpace(candidate.ParentID); parent != "" && parent != "0" {
		return "parent:" + parent
	}
	if policy.ContentGrouping {
		if cover := strings.TrimSpace(candidate.CoverURL); cover != "" {
			return "cover:" + cover
		}
		if title := normalizeTitleKey(candidate.Title); title != "" {
			return "title:" + normalizeTitleKey(candidate.Artist) + "|" + title
		}
	}
	return "id:" + strings.TrimSpace(candidate.ID)
}

// normalizeTitleKey lower-cases and strips punctuation, collapsing whitespace.
func normalizeTitleKey(raw string) string {
	var builder strings.Builder
	builder.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			builder.WriteRune(r)
		case unicode.IsSpace(r):
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

func buildRelease(engine domain.SearchEngine, members []domain.RawCandidate) domain.CanonicalRelease {
	rep := members[0]
	for _, member := range members[1:] {
		if betterRepresentative(member, rep) {
			rep = member
		}
	}

	release := domain.CanonicalRelease{
		ID:                     string(engine) + ":" + strings.TrimSpace(rep.ID),
		Engine:                 engine,
		ProviderID:             strings.TrimSpace(rep.ID),
		ParentID:               strings.TrimSpace(rep.ParentID),
		Artist:                 strings.TrimSpace(rep.Artist),
		Title:                  strings.TrimSpace(rep.Title),
		RelevanceScore:         rep.Score,
		TotalCandidatesInGroup: len(members),
		CoverURL:               strings.TrimSpace(rep.CoverURL),
		Label:                  strings.TrimSpace(rep.Label),
	}
	if release.ParentID == "0" {
		release.ParentID = ""
	}

	years := make(map[string]struct{}, len(members))
	var types []string
	var tags []string
	for _, member := range members {
		if year := extractYear(member.Date); year != "" {
			years[year] = struct{}{}
		}
		if t := strings.TrimSpace(member.Type); t != "" {
			types = append(types, t)
		}
		tags = append(tags, member.Tags...)
		if member.TrackCount > 0 {
			if release.MinTracks == 0 || member.TrackCount < release.MinTracks {
				release.MinTracks = member.TrackCount
			}
			if member.TrackCount > release.MaxTracks {
				release.MaxTracks = member.TrackCount
			}
		}
		if release.CoverURL == "" {
			release.CoverURL = strings.TrimSpace(member.CoverURL)
		}
		if release.Label == "" {
			release.Label = strings.TrimSpace(member.Label)
		}
	}

	release.Years = make([]string, 0, len(years))
	for year := range years {
		release.Years = append(release.Years, year)
	}
	sort.Strings(release.Years)
	release.Types = uniqueStrings(types)
	release.Tags = rankTags(tags)
	return release
}

// betterRepresentative reports whether candidate should replace current as the
// group's representative record.
func betterRepresentative(candidate, current domain.RawCandidate) bool {
	if candidate.GroupHead != current.GroupHead {
		return candidate.GroupHead
	}
	if cmp := compareInt(candidate.Score, current.Score); cmp != 0 {
		return cmp > 0
	}
	if candidate.Official() != current.Official() {
		return candidate.Official()
	}
	if cmp := compareDates(candidate.Date, current.Date); cmp != 0 {
		return cmp < 0
	}
	if cmp := compareInt(titleLength(candidate.Title), titleLength(current.Title)); cmp != 0 {
		return cmp < 0
	}
	return strings.TrimSpace(candidate.ID) < strings.TrimSpace(current.ID)
}

// compareDates orders known dates ascending and places unknown dates last.
func compareDates(left, right string) int {
	left, right = normalizeDate(left), normalizeDate(right)
	switch {
	case left == right:
		return 0
	case left == "":
		return 1
	case right == "":
		return -1
	default:
		return strings.Compare(left, right)
	}
}

func normalizeDate(raw string) string {
	value := strings.TrimSpace(raw)
	if extractYear(value) == "" {
		return ""
	}
	return value
}

func extractYear(raw string) string {
	match := yearPrefixPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if len(match) < 2 || match[1] == "0000" {
		return ""
	}
	return match[1]
}

func sortReleases(releases []domain.CanonicalRelease) {
	sort.SliceStable(releases, func(i, j int) bool {
		return compareReleases(releases[i], releases[j]) < 0
	})
}

// compareReleases returns a negative value when left should be listed before right:
// newest year first (unknown sorts oldest), then higher relevance, then shorter title.
func compareReleases(left, right domain.CanonicalRelease) int {
	if cmp := strings.Compare(left.NewestYear(), right.NewestYear()); cmp != 0 {
		return -cmp
	}
	if cmp := compareInt(left.RelevanceScore, right.RelevanceScore); cmp != 0 {
		return -cmp
	}
	if cmp := compareInt(titleLength(left.Title), titleLength(right.Title)); cmp != 0 {
		return cmp
	}
	return strings.Compare(left.ID, right.ID)
}

func titleLength(title string) int {
	return utf8.RuneCountInString(strings.TrimSpace(title))
}

func compareInt(left, right int) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func uniqueStrings(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// rankTags lower-cases tags and orders them by frequency, ties alphabetically.
func rankTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tags))
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		counts[key]++
	}
	out := make([]string, 0, len(counts))
	for tag := range counts {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
