package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"releasefinder/internal/domain"
)

// User-facing texts. The first three imply different next steps and are never
// merged into one message.
const (
	MessageNoResults      = "Nothing found on any source. Check the spelling or try fewer words."
	MessageSessionExpired = "This search has expired. Start a new search."
	MessageNoDeeperSource = "There is no deeper source to dig into. Try rephrasing the query."
	MessageEndOfResults   = "No more results."
	MessageReleaseGone    = "That release is no longer available. Start a new search."
	MessageBadInput       = "I could not understand that. Send an artist and album name."
	MessageBadOption      = "That option is not in the list."
	MessageInternal       = "Something went wrong. Please try again."
)

// ErrorMessage maps an error to its user-facing text.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoResults):
		return MessageNoResults
	case errors.Is(err, domain.ErrSessionExpired):
		return MessageSessionExpired
	case errors.Is(err, domain.ErrTerminalEscalation):
		return MessageNoDeeperSource
	case errors.Is(err, domain.ErrEndOfResults):
		return MessageEndOfResults
	case errors.Is(err, domain.ErrReleaseNotFound):
		return MessageReleaseGone
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrUnknownEngine):
		return MessageBadInput
	case errors.Is(err, domain.ErrOptionOutOfRange):
		return MessageBadOption
	default:
		return MessageInternal
	}
}

// RenderError renders err as a single response item. An empty search still
// offers to dig deeper when page says a deeper engine exists.
func RenderError(err error, page domain.Page) []domain.ResponseItem {
	item := domain.ResponseItem{Text: ErrorMessage(err)}
	if errors.Is(err, domain.ErrNoResults) && page.CanDigDeeper {
		item.Text = fmt.Sprintf("Nothing found on %s.", page.Engine.Label())
		item.Actions = []domain.Action{{Label: "Dig deeper", Data: ActionDig}}
	}
	return []domain.ResponseItem{item}
}

// RenderPage turns a page into chat items: a header, one card per release and
// navigation actions on the header.
func RenderPage(page domain.Page) []domain.ResponseItem {
	header := domain.ResponseItem{Text: page.Header}
	if page.More != nil {
		header.Actions = append(header.Actions, domain.Action{
			Label: fmt.Sprintf("More (%d)", page.More.Remaining),
			Data:  ActionPage + strconv.Itoa(page.More.NextPage),
		})
	}
	if page.CanDigDeeper {
		header.Actions = append(header.Actions, domain.Action{Label: "Dig deeper", Data: ActionDig})
	}

	items := make([]domain.ResponseItem, 0, len(page.Items)+1)
	items = append(items, header)
	for _, summary := range page.Items {
		items = append(items, domain.ResponseItem{
			Text:     releaseCard(summary),
			ImageURL: summary.CoverURL,
			Actions:  summary.Actions,
		})
	}
	return items
}

func releaseCard(summary domain.ReleaseSummary) string {
	lines := []string{summary.Artist + " – " + summary.Title}
	var details []string
	for _, value := range []string{summary.Years, summary.Types, summary.Tracks, summary.Label} {
		if value != "" {
			details = append(details, value)
		}
	}
	if len(details) > 0 {
		lines = append(lines, strings.Join(details, " · "))
	}
	if summary.Tags != "" {
		lines = append(lines, summary.Tags)
	}
	return strings.Join(lines, "\n")
}

// RenderTracks lists a release's tracklist.
func RenderTracks(release domain.CanonicalRelease) []domain.ResponseItem {
	if len(release.TrackTitles) == 0 {
		return []domain.ResponseItem{{Text: fmt.Sprintf("No tracklist available for %s.", release.Title)}}
	}
	var builder strings.Builder
	builder.WriteString(release.Artist + " – " + release.Title)
	for i, title := range release.TrackTitles {
		fmt.Fprintf(&builder, "\n%d. %s", i+1, title)
	}
	return []domain.ResponseItem{{
		Text:    builder.String(),
		Actions: []domain.Action{{Label: "Download", Data: ActionDownload + release.ID}},
	}}
}

// RenderAnalysis lists analyzed options, best first, each with a select action.
func RenderAnalysis(result domain.AnalysisResult) []domain.ResponseItem {
	if len(result.Reports) == 0 {
		text := "No download options found."
		if result.Engine != "" {
			text = fmt.Sprintf("No download options found on %s.", result.Engine.Label())
		}
		if result.FallbackEngine != "" {
			text += fmt.Sprintf(" Try %s instead.", result.FallbackEngine.Label())
		}
		return []domain.ResponseItem{{Text: text}}
	}
	items := make([]domain.ResponseItem, 0, len(result.Reports))
	for i, report := range result.Reports {
		option := report.Option
		text := fmt.Sprintf("%s %s", report.Glyph, optionTitle(option))
		if n := len(option.Files); n > 0 {
			text += fmt.Sprintf(" · %d files", n)
		}
		if option.TotalSizeMB > 0 {
			text += fmt.Sprintf(" · %d MB", option.TotalSizeMB)
		}
		items = append(items, domain.ResponseItem{
			Text:    text,
			Actions: []domain.Action{{Label: "Select", Data: ActionSelect + strconv.Itoa(i)}},
		})
	}
	return items
}

func optionTitle(option domain.DownloadOption) string {
	if name := strings.TrimSpace(option.DistributorName); name != "" {
		return name
	}
	if name := strings.TrimSpace(option.SourceName); name != "" {
		return name
	}
	return option.ID
}
