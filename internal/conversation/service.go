package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"releasefinder/internal/analyzer"
	"releasefinder/internal/domain"
	"releasefinder/internal/folder"
	"releasefinder/internal/pager"
	"releasefinder/internal/search"
	"releasefinder/internal/session"
	"releasefinder/internal/tasks"
)

// ReleaseSearch is the subset of the search service the conversation drives.
type ReleaseSearch interface {
	Search(ctx context.Context, query string, engine domain.SearchEngine) (search.Result, error)
	Escalate(ctx context.Context, current domain.SearchEngine, query string) (search.Result, error)
	HasDeeperEngine(current domain.SearchEngine) bool
	Engines() []domain.SearchEngine
	Release(id string) (domain.CanonicalRelease, error)
	Releases(ids []string) []domain.CanonicalRelease
	EnrichTracks(ctx context.Context, id string) (domain.CanonicalRelease, error)
	ClearReleases()
}

// IntentClassifier normalizes free text into a search. A nil intent means the
// text was not understood.
type IntentClassifier interface {
	ClassifySearch(ctx context.Context, text string) (*domain.SearchIntent, error)
}

type FolderParser interface {
	Parse(ctx context.Context, name string) (domain.FolderInfo, bool)
}

const defaultEnrichConcurrency = 4

type Service struct {
	search    ReleaseSearch
	sessions  *session.Store
	pages     *pager.Builder
	publisher tasks.Publisher
	intents   IntentClassifier
	folders   FolderParser
	enrichSem *semaphore.Weighted
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPager(builder *pager.Builder) Option {
	return func(s *Service) {
		if builder != nil {
			s.pages = builder
		}
	}
}

func WithPublisher(publisher tasks.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func WithIntentClassifier(intents IntentClassifier) Option {
	return func(s *Service) {
		s.intents = intents
	}
}

func WithFolderParser(folders FolderParser) Option {
	return func(s *Service) {
		if folders != nil {
			s.folders = folders
		}
	}
}

// WithEnrichConcurrency caps tracklist fetches running at once across all users.
func WithEnrichConcurrency(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.enrichSem = semaphore.NewWeighted(n)
		}
	}
}

func NewService(searcher ReleaseSearch, sessions *session.Store, opts ...Option) *Service {
	s := &Service{
		search:    searcher,
		sessions:  sessions,
		pages:     pager.NewBuilder(),
		enrichSem: semaphore.NewWeighted(defaultEnrichConcurrency),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = tasks.NewLogPublisher(s.logger)
	}
	if s.folders == nil {
		s.folders = folder.NewParser(folder.WithLogger(s.logger))
	}
	return s
}

// Search runs a new search for the user and returns its first page. The user's
// session is replaced even when nothing was found; in that case the returned
// page is empty and the error is domain.ErrNoResults.
func (s *Service) Search(ctx context.Context, userID, text string, engine domain.SearchEngine) (domain.Page, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return domain.Page{}, domain.ErrInvalidQuery
	}
	if engine == "" && s.intents != nil {
		query, engine = s.classify(ctx, query)
	}
	return s.runSearch(ctx, userID, query, engine)
}

func (s *Service) classify(ctx context.Context, text string) (string, domain.SearchEngine) {
	intent, err := s.intents.ClassifySearch(ctx, text)
	if err != nil {
		s.logger.Warn("intent classification failed",
			slog.String("text", text),
			slog.String("error", err.Error()),
		)
		return text, ""
	}
	if intent == nil || strings.TrimSpace(intent.Query) == "" {
		return text, ""
	}
	engine := intent.Engine
	if engine != "" && !slices.Contains(s.search.Engines(), engine) {
		s.logger.Debug("ignoring unconfigured intent engine", slog.String("engine", string(engine)))
		engine = ""
	}
	return strings.TrimSpace(intent.Query), engine
}

func (s *Service) runSearch(ctx context.Context, userID, query string, engine domain.SearchEngine) (domain.Page, error) {
	result, err := s.search.Search(ctx, query, engine)
	if err != nil {
		return domain.Page{}, err
	}
	return s.storeAndRender(ctx, userID, result)
}

// Escalate reruns the user's query on the next deeper engine.
func (s *Service) Escalate(ctx context.Context, userID string) (domain.Page, error) {
	current, err := s.sessions.Search(userID)
	if err != nil {
		return domain.Page{}, err
	}
	result, err := s.search.Escalate(ctx, current.Engine, current.Query)
	if err != nil {
		return domain.Page{}, err
	}
	s.logger.Info("search escalated",
		slog.String("user", userID),
		slog.String("from", string(current.Engine)),
		slog.String("to", string(result.Engine)),
		slog.Int("results", len(result.Releases)),
	)
	return s.storeAndRender(ctx, userID, result)
}

func (s *Service) storeAndRender(ctx context.Context, userID string, result search.Result) (domain.Page, error) {
	ids := make([]string, 0, len(result.Releases))
	for _, release := range result.Releases {
		ids = append(ids, release.ID)
	}
	s.sessions.Save(userID, result.Engine, result.Query, ids)

	if len(ids) == 0 {
		return domain.Page{
			Engine:       result.Engine,
			Query:        result.Query,
			Header:       fmt.Sprintf("Nothing found on %s", result.Engine.Label()),
			Items:        []domain.ReleaseSummary{},
			CanDigDeeper: s.search.HasDeeperEngine(result.Engine),
		}, domain.ErrNoResults
	}
	return s.buildPage(ctx, userID, 0)
}

// GetPage renders page index of the user's current results and moves the
// session cursor there.
func (s *Service) GetPage(ctx context.Context, userID string, index int) (domain.Page, error) {
	return s.buildPage(ctx, userID, index)
}

func (s *Service) buildPage(ctx context.Context, userID string, index int) (domain.Page, error) {
	current, err := s.sessions.Search(userID)
	if err != nil {
		return domain.Page{}, err
	}
	start, end, err := s.pages.Bounds(len(current.ReleaseIDs), index)
	if err != nil {
		return domain.Page{}, err
	}
	s.enrichPage(ctx, current.ReleaseIDs[start:end])

	releases := s.search.Releases(current.ReleaseIDs)
	page, err := s.pages.Build(current.Engine, current.Query, releases, index, s.search.HasDeeperEngine(current.Engine))
	if err != nil {
		return domain.Page{}, err
	}
	if err := s.sessions.SetPage(userID, index); err != nil {
		return domain.Page{}, err
	}
	return page, nil
}

// enrichPage fetches tracklists for the releases on a page whose track count is
// unknown. Failures leave the release as it was.
func (s *Service) enrichPage(ctx context.Context, ids []string) {
	g, gctx := errgroup.WithContext(ctx)
	for _, release := range s.search.Releases(ids) {
		if release.MinTracks > 0 || len(release.TrackTitles) > 0 {
			continue
		}
		id := release.ID
		g.Go(func() error {
			if err := s.enrichSem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer s.enrichSem.Release(1)
			_, _ = s.search.EnrichTracks(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

// Tracks returns the release with its tracklist attached when the provider has one.
func (s *Service) Tracks(ctx context.Context, releaseID string) (domain.CanonicalRelease, error) {
	return s.search.EnrichTracks(ctx, releaseID)
}

// AnalyzeDownloadOptions scores a batch of download options from engine against a
// cached release and keeps the reports as the user's download session. An empty
// engine is taken from the batch itself.
func (s *Service) AnalyzeDownloadOptions(ctx context.Context, userID, releaseID string, engine domain.DownloadEngine, options []domain.DownloadOption) (domain.AnalysisResult, error) {
	expected, err := s.search.Release(releaseID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if expected.ExpectedTracks() == 0 {
		if enriched, err := s.search.EnrichTracks(ctx, releaseID); err == nil {
			expected = enriched
		}
	}

	result := analyzer.Run(engine, options, expected)
	if len(result.Reports) == 0 {
		s.sessions.ClearDownloadSession(userID)
		return result, nil
	}
	s.sessions.SaveDownloadOptions(userID, session.DownloadSession{
		ReleaseID: expected.ID,
		Engine:    result.Engine,
		Reports:   result.Reports,
	})
	s.logger.Info("download options analyzed",
		slog.String("user", userID),
		slog.String("release", expected.ID),
		slog.String("engine", string(result.Engine)),
		slog.Int("options", len(result.Reports)),
		slog.Bool("autoDownload", result.AutoDownload),
	)
	return result, nil
}

// Selection is the outcome of picking one analyzed option.
type Selection struct {
	Text   string              `json:"text"`
	Report domain.OptionReport `json:"report"`
	TaskID string              `json:"taskId"`
}

// SelectOption picks option index from the user's download session, queues the
// processing job and ends the download session.
func (s *Service) SelectOption(ctx context.Context, userID string, index int) (Selection, error) {
	current, err := s.sessions.DownloadOptions(userID)
	if err != nil {
		return Selection{}, err
	}
	if index < 0 || index >= len(current.Reports) {
		return Selection{}, fmt.Errorf("%w: %d of %d", domain.ErrOptionOutOfRange, index, len(current.Reports))
	}
	report := current.Reports[index]

	release, err := s.search.Release(current.ReleaseID)
	if err != nil {
		release = domain.CanonicalRelease{ID: current.ReleaseID}
	}

	msg := tasks.NewMessage(tasks.KindProcessDownload, userID, release.ID, release.Artist, release.Title)
	msg.Engine = string(current.Engine)
	msg.OptionID = report.Option.ID
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return Selection{}, fmt.Errorf("queue download: %w", err)
	}
	s.sessions.ClearDownloadSession(userID)

	return Selection{
		Text:   analyzer.For(current.Engine).FormatConfirmation(report, release),
		Report: report,
		TaskID: msg.ID,
	}, nil
}

// RequestDownload asks the file-search workers to look for downloadable copies
// of a release.
func (s *Service) RequestDownload(ctx context.Context, userID, releaseID string) (tasks.Message, error) {
	release, err := s.search.Release(releaseID)
	if err != nil {
		return tasks.Message{}, err
	}
	msg := tasks.NewMessage(tasks.KindFileSearch, userID, release.ID, release.Artist, release.Title)
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return tasks.Message{}, fmt.Errorf("queue file search: %w", err)
	}
	return msg, nil
}

// IdentifyFolder recovers artist and album from a folder name and searches for them.
func (s *Service) IdentifyFolder(ctx context.Context, userID, folderName string) (domain.FolderInfo, domain.Page, error) {
	info, ok := s.folders.Parse(ctx, folderName)
	if !ok {
		return domain.FolderInfo{}, domain.Page{}, fmt.Errorf("%w: folder name not recognized", domain.ErrInvalidQuery)
	}
	page, err := s.runSearch(ctx, userID, info.Artist+" "+info.Album, "")
	return info, page, err
}

// ClearAllSessions drops every session and the release cache.
func (s *Service) ClearAllSessions() {
	s.sessions.ClearAll()
	s.search.ClearReleases()
	s.logger.Info("all sessions cleared")
}

// IsUserFacing reports whether err maps to one of the fixed user messages
// rather than an internal failure.
func IsUserFacing(err error) bool {
	for _, target := range []error{
		domain.ErrSessionExpired,
		domain.ErrNoResults,
		domain.ErrTerminalEscalation,
		domain.ErrEndOfResults,
		domain.ErrReleaseNotFound,
		domain.ErrInvalidQuery,
		domain.ErrOptionOutOfRange,
		domain.ErrUnknownEngine,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
