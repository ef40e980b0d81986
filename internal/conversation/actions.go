package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"releasefinder/internal/domain"
)

// Action data prefixes attached to response items.
const (
	ActionDownload = "download:"
	ActionTracks   = "tracks:"
	ActionPage     = "page:"
	ActionSelect   = "select:"
	ActionDig      = "dig"
)

// HandleText treats a chat message as a new search.
func (s *Service) HandleText(ctx context.Context, userID, text string) []domain.ResponseItem {
	page, err := s.Search(ctx, userID, text, "")
	if err != nil {
		return RenderError(err, page)
	}
	return RenderPage(page)
}

// HandleAction dispatches a button press identified by its action data.
func (s *Service) HandleAction(ctx context.Context, userID, data string) []domain.ResponseItem {
	data = strings.TrimSpace(data)
	switch {
	case data == ActionDig:
		page, err := s.Escalate(ctx, userID)
		if err != nil {
			return RenderError(err, page)
		}
		return RenderPage(page)

	case strings.HasPrefix(data, ActionPage):
		index, err := strconv.Atoi(strings.TrimPrefix(data, ActionPage))
		if err != nil {
			return RenderError(domain.ErrInvalidQuery, domain.Page{})
		}
		page, err := s.GetPage(ctx, userID, index)
		if err != nil {
			return RenderError(err, page)
		}
		return RenderPage(page)

	case strings.HasPrefix(data, ActionTracks):
		release, err := s.Tracks(ctx, strings.TrimPrefix(data, ActionTracks))
		if err != nil {
			return RenderError(err, domain.Page{})
		}
		return RenderTracks(release)

	case strings.HasPrefix(data, ActionDownload):
		msg, err := s.RequestDownload(ctx, userID, strings.TrimPrefix(data, ActionDownload))
		if err != nil {
			return RenderError(err, domain.Page{})
		}
		return []domain.ResponseItem{{Text: fmt.Sprintf("Looking for files of %s – %s…", msg.Artist, msg.Title)}}

	case strings.HasPrefix(data, ActionSelect):
		index, err := strconv.Atoi(strings.TrimPrefix(data, ActionSelect))
		if err != nil {
			return RenderError(domain.ErrOptionOutOfRange, domain.Page{})
		}
		selection, err := s.SelectOption(ctx, userID, index)
		if err != nil {
			return RenderError(err, domain.Page{})
		}
		return []domain.ResponseItem{{Text: selection.Text}}

	default:
		return RenderError(domain.ErrInvalidQuery, domain.Page{})
	}
}
