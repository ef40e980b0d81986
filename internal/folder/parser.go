package folder

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"releasefinder/internal/domain"
)

// Collaborator is the language-model parser consulted before the local rules.
// A nil result or an incomplete triple means "not understood".
type Collaborator interface {
	ParseFolder(ctx context.Context, name string) (*domain.FolderInfo, error)
}

// matcher is one fixed folder naming convention. It either fully matches with
// artist and album or is skipped.
type matcher struct {
	name    string
	pattern *regexp.Regexp
}

var matchers = []matcher{
	{name: "artist-year-album", pattern: regexp.MustCompile(`^(?P<artist>.+?)\s+-\s+(?P<year>(?:19|20)\d{2})\s+-\s+(?P<album>.+)$`)},
	{name: "artist-album-year", pattern: regexp.MustCompile(`^(?P<artist>.+?)\s+-\s+(?P<album>.+?)\s*[\(\[](?P<year>(?:19|20)\d{2})[\)\]]$`)},
	{name: "year-artist-album", pattern: regexp.MustCompile(`^[\(\[]?(?P<year>(?:19|20)\d{2})[\)\]]?\s*-?\s*(?P<artist>.+?)\s+-\s+(?P<album>.+)$`)},
	{name: "artist-album", pattern: regexp.MustCompile(`^(?P<artist>.+?)\s+-\s+(?P<album>.+)$`)},
}

// trailingTags strips bracketed format/source tags such as "[FLAC]" or "(24bit-96kHz)".
var trailingTags = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*(?:flac|mp3|alac|aac|ogg|wav|\d+\s*bit|\d+(?:\.\d+)?\s*khz|web|cd|vinyl|lossless|320|v0)[^\)\]]*[\)\]]\s*$`)

var yearOnly = regexp.MustCompile(`^[\(\[]?\d{4}[\)\]]?$`)

type Parser struct {
	llm    Collaborator
	logger *slog.Logger
}

type ParserOption func(*Parser)

func WithCollaborator(llm Collaborator) ParserOption {
	return func(p *Parser) {
		p.llm = llm
	}
}

func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse recovers artist, album and year from a folder name. It asks the
// collaborator first, then tries the naming conventions in order and finally a
// scene-release parse.
func (p *Parser) Parse(ctx context.Context, name string) (domain.FolderInfo, bool) {
	name = cleanFolderName(name)
	if name == "" {
		return domain.FolderInfo{}, false
	}

	if p.llm != nil {
		info, err := p.llm.ParseFolder(ctx, name)
		switch {
		case err != nil:
			p.logger.Warn("folder collaborator failed",
				slog.String("folder", name),
				slog.String("error", err.Error()),
			)
		case info != nil:
			normalized := normalizeInfo(*info)
			if normalized.Complete() {
				return normalized, true
			}
		}
	}

	if info, ok := matchPatterns(name); ok {
		return info, true
	}
	if info, ok := parseScene(name); ok {
		return info, true
	}
	return domain.FolderInfo{}, false
}

func matchPatterns(name string) (domain.FolderInfo, bool) {
	stripped := name
	for {
		next := trailingTags.ReplaceAllString(stripped, "")
		if next == stripped {
			break
		}
		stripped = next
	}
	for _, m := range matchers {
		match := m.pattern.FindStringSubmatch(stripped)
		if match == nil {
			continue
		}
		info := domain.FolderInfo{}
		for i, group := range m.pattern.SubexpNames() {
			switch group {
			case "artist":
				info.Artist = match[i]
			case "album":
				info.Album = match[i]
			case "year":
				info.Year = match[i]
			}
		}
		info = normalizeInfo(info)
		if info.Complete() && !yearOnly.MatchString(info.Artist) {
			return info, true
		}
	}
	return domain.FolderInfo{}, false
}

// parseScene handles scene names like "Artist-Album-WEB-2019-GROUP". Names with
// spaces or without separators are never scene names.
func parseScene(name string) (domain.FolderInfo, bool) {
	if strings.Contains(name, " ") || !strings.ContainsAny(name, ".-_") {
		return domain.FolderInfo{}, false
	}
	release := rls.ParseString(name)
	info := domain.FolderInfo{
		Artist: release.Artist,
		Album:  release.Title,
	}
	if release.Year > 0 {
		info.Year = strconv.Itoa(release.Year)
	}
	info = normalizeInfo(info)
	return info, info.Complete()
}

func cleanFolderName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, `/\`)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

func normalizeInfo(info domain.FolderInfo) domain.FolderInfo {
	info.Artist = collapseSpaces(info.Artist)
	info.Album = collapseSpaces(info.Album)
	info.Year = strings.TrimSpace(info.Year)
	if len(info.Year) != 4 {
		info.Year = ""
	}
	return info
}

func collapseSpaces(value string) string {
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}
