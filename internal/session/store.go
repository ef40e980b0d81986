package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"releasefinder/internal/domain"
	"releasefinder/internal/metrics"
)

// SearchSession is the single-slot record of a user's latest search. It is
// replaced wholesale by every Save.
type SearchSession struct {
	Engine     domain.SearchEngine
	Query      string
	ReleaseIDs []string
	Page       int
	SavedAt    time.Time
}

// DownloadSession holds the analyzed options of an in-progress download
// selection for one release.
type DownloadSession struct {
	ReleaseID string
	Engine    domain.DownloadEngine
	Reports   []domain.OptionReport
	SavedAt   time.Time
}

// Store keeps search and download sessions in two independent maps. Each map has
// its own lock so a download selection never waits on search traffic. Reads before
// any save for a user fail with domain.ErrSessionExpired.
type Store struct {
	searchMu sync.RWMutex
	searches map[string]SearchSession

	downloadMu sync.RWMutex
	downloads  map[string]DownloadSession

	now func() time.Time
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		searches:  make(map[string]SearchSession),
		downloads: make(map[string]DownloadSession),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save overwrites the user's search session and resets the page cursor.
func (s *Store) Save(userID string, engine domain.SearchEngine, query string, releaseIDs []string) {
	key := normalizeUser(userID)
	entry := SearchSession{
		Engine:     engine,
		Query:      strings.TrimSpace(query),
		ReleaseIDs: append([]string(nil), releaseIDs...),
		SavedAt:    s.now(),
	}

	s.searchMu.Lock()
	s.searches[key] = entry
	active := len(s.searches)
	s.searchMu.Unlock()

	metrics.SessionsActive.WithLabelValues("search").Set(float64(active))
}

// Search returns a copy of the user's search session.
func (s *Store) Search(userID string) (SearchSession, error) {
	key := normalizeUser(userID)
	s.searchMu.RLock()
	entry, ok := s.searches[key]
	s.searchMu.RUnlock()
	if !ok {
		return SearchSession{}, fmt.Errorf("%w: user %s", domain.ErrSessionExpired, key)
	}
	entry.ReleaseIDs = append([]string(nil), entry.ReleaseIDs...)
	return entry, nil
}

func (s *Store) OrderedResults(userID string) ([]string, error) {
	entry, err := s.Search(userID)
	if err != nil {
		return nil, err
	}
	return entry.ReleaseIDs, nil
}

func (s *Store) Engine(userID string) (domain.SearchEngine, error) {
	entry, err := s.Search(userID)
	if err != nil {
		return "", err
	}
	return entry.Engine, nil
}

func (s *Store) Query(userID string) (string, error) {
	entry, err := s.Search(userID)
	if err != nil {
		return "", err
	}
	return entry.Query, nil
}

// SetPage moves the pagination cursor of an existing session.
func (s *Store) SetPage(userID string, page int) error {
	key := normalizeUser(userID)
	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	entry, ok := s.searches[key]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrSessionExpired, key)
	}
	if page < 0 {
		page = 0
	}
	entry.Page = page
	s.searches[key] = entry
	return nil
}

func (s *Store) Page(userID string) (int, error) {
	entry, err := s.Search(userID)
	if err != nil {
		return 0, err
	}
	return entry.Page, nil
}

func (s *Store) SaveDownloadOptions(userID string, entry DownloadSession) {
	key := normalizeUser(userID)
	entry.Reports = append([]domain.OptionReport(nil), entry.Reports...)
	if entry.SavedAt.IsZero() {
		entry.SavedAt = s.now()
	}

	s.downloadMu.Lock()
	s.downloads[key] = entry
	active := len(s.downloads)
	s.downloadMu.Unlock()

	metrics.SessionsActive.WithLabelValues("download").Set(float64(active))
}

func (s *Store) DownloadOptions(userID string) (DownloadSession, error) {
	key := normalizeUser(userID)
	s.downloadMu.RLock()
	entry, ok := s.downloads[key]
	s.downloadMu.RUnlock()
	if !ok {
		return DownloadSession{}, fmt.Errorf("%w: no download selection for user %s", domain.ErrSessionExpired, key)
	}
	entry.Reports = append([]domain.OptionReport(nil), entry.Reports...)
	return entry, nil
}

func (s *Store) ClearDownloadSession(userID string) {
	key := normalizeUser(userID)
	s.downloadMu.Lock()
	delete(s.downloads, key)
	active := len(s.downloads)
	s.downloadMu.Unlock()

	metrics.SessionsActive.WithLabelValues("download").Set(float64(active))
}

// ClearAll drops every session of both kinds. Both locks are held together so no
// reader observes one map cleared and the other not.
func (s *Store) ClearAll() {
	s.searchMu.Lock()
	s.downloadMu.Lock()
	s.searches = make(map[string]SearchSession)
	s.downloads = make(map[string]DownloadSession)
	s.downloadMu.Unlock()
	s.searchMu.Unlock()

	metrics.SessionsActive.WithLabelValues("search").Set(0)
	metrics.SessionsActive.WithLabelValues("download").Set(0)
}

// Counts reports the number of live search and download sessions.
func (s *Store) Counts() (searches, downloads int) {
	s.searchMu.RLock()
	searches = len(s.searches)
	s.searchMu.RUnlock()
	s.downloadMu.RLock()
	downloads = len(s.downloads)
	s.downloadMu.RUnlock()
	return searches, downloads
}

func normalizeUser(userID string) string {
	return strings.TrimSpace(userID)
}
