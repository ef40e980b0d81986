package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"releasefinder/internal/conversation"
	"releasefinder/internal/domain"
	"releasefinder/internal/tasks"
)

// ChatService is the conversation core exposed over HTTP and the chat socket.
type ChatService interface {
	Search(ctx context.Context, userID, text string, engine domain.SearchEngine) (domain.Page, error)
	Escalate(ctx context.Context, userID string) (domain.Page, error)
	GetPage(ctx context.Context, userID string, index int) (domain.Page, error)
	Tracks(ctx context.Context, releaseID string) (domain.CanonicalRelease, error)
	AnalyzeDownloadOptions(ctx context.Context, userID, releaseID string, engine domain.DownloadEngine, options []domain.DownloadOption) (domain.AnalysisResult, error)
	SelectOption(ctx context.Context, userID string, index int) (conversation.Selection, error)
	RequestDownload(ctx context.Context, userID, releaseID string) (tasks.Message, error)
	IdentifyFolder(ctx context.Context, userID, folderName string) (domain.FolderInfo, domain.Page, error)
	ClearAllSessions()
	HandleText(ctx context.Context, userID, text string) []domain.ResponseItem
	HandleAction(ctx context.Context, userID, data string) []domain.ResponseItem
}

type ProviderStatusService interface {
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type Server struct {
	chat      ChatService
	providers ProviderStatusService
	hub       *chatHub
	covers    *http.Client
	rateRPS   float64
	rateBurst int
	logger    *slog.Logger
}

const (
	maxQueryLength = 500
	maxBodyBytes   = 1 << 20
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithProviderStatus(providers ProviderStatusService) ServerOption {
	return func(s *Server) {
		s.providers = providers
	}
}

// WithRateLimit sets the global request rate. Non-positive values keep the defaults.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func NewServer(chat ChatService, options ...ServerOption) *Server {
	server := &Server{
		chat:      chat,
		rateRPS:   50,
		rateBurst: 100,
		logger:    slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.covers = newCoverProxyClient()
	server.hub = newChatHub(server.logger)
	go server.hub.run()
	return server
}

// Close disconnects chat clients.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /providers", s.handleProviders)
	mux.HandleFunc("GET /providers/health", s.handleProvidersHealth)
	mux.HandleFunc("POST /sessions/{user}/search", s.handleSearch)
	mux.HandleFunc("POST /sessions/{user}/escalate", s.handleEscalate)
	mux.HandleFunc("GET /sessions/{user}/pages/{index}", s.handlePage)
	mux.HandleFunc("POST /sessions/{user}/downloads/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /sessions/{user}/downloads/select", s.handleSelect)
	mux.HandleFunc("POST /sessions/{user}/downloads/request", s.handleRequestDownload)
	mux.HandleFunc("POST /sessions/{user}/folders/identify", s.handleIdentifyFolder)
	mux.HandleFunc("GET /releases/{id}/tracks", s.handleTracks)
	mux.HandleFunc("POST /admin/clear", s.handleClearAll)
	mux.HandleFunc("GET /covers", s.handleCoverProxy)
	mux.HandleFunc("GET /chat/ws", s.handleChatSocket)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "releasefinder",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	if s.providers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.ProviderInfo{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.providers.Providers()})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, _ *http.Request) {
	if s.providers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.ProviderDiagnostics{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.providers.ProviderDiagnostics()})
}

type searchRequest struct {
	Query  string `json:"query"`
	Engine string `json:"engine,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	var body searchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	query := strings.TrimSpace(body.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	var engine domain.SearchEngine
	if raw := strings.TrimSpace(body.Engine); raw != "" {
		parsed, ok := domain.ParseSearchEngine(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown engine")
			return
		}
		engine = parsed
	}

	page, err := s.chat.Search(r.Context(), user, query, engine)
	if err != nil {
		s.writeServiceError(w, r, err, page)
		return
	}
	s.logger.Info("search completed",
		slog.String("user", user),
		slog.String("query", truncate(query, 80)),
		slog.String("engine", string(page.Engine)),
		slog.Int("total", page.Total),
	)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	page, err := s.chat.Escalate(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err, page)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page index")
		return
	}
	page, err := s.chat.GetPage(r.Context(), user, index)
	if err != nil {
		s.writeServiceError(w, r, err, page)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "release id is required")
		return
	}
	release, err := s.chat.Tracks(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, domain.Page{})
		return
	}
	writeJSON(w, http.StatusOK, release)
}

type analyzeRequest struct {
	ReleaseID string                  `json:"releaseId"`
	Engine    string                  `json:"engine"`
	Options   []domain.DownloadOption `json:"options"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	var body analyzeRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(body.ReleaseID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "releaseId is required")
		return
	}
	result, err := s.chat.AnalyzeDownloadOptions(r.Context(), user, body.ReleaseID, domain.ParseDownloadEngine(body.Engine), body.Options)
	if err != nil {
		s.writeServiceError(w, r, err, domain.Page{})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type selectRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	var body selectRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if body.Index == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "index is required")
		return
	}
	selection, err := s.chat.SelectOption(r.Context(), user, *body.Index)
	if err != nil {
		s.writeServiceError(w, r, err, domain.Page{})
		return
	}
	writeJSON(w, http.StatusAccepted, selection)
}

type downloadRequest struct {
	ReleaseID string `json:"releaseId"`
}

func (s *Server) handleRequestDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	var body downloadRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(body.ReleaseID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "releaseId is required")
		return
	}
	msg, err := s.chat.RequestDownload(r.Context(), user, body.ReleaseID)
	if err != nil {
		s.writeServiceError(w, r, err, domain.Page{})
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

type folderRequest struct {
	Folder string `json:"folder"`
}

func (s *Server) handleIdentifyFolder(w http.ResponseWriter, r *http.Request) {
	user, ok := pathUser(w, r)
	if !ok {
		return
	}
	var body folderRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(body.Folder) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "folder is required")
		return
	}
	info, page, err := s.chat.IdentifyFolder(r.Context(), user, body.Folder)
	if err != nil && !errors.Is(err, domain.ErrNoResults) {
		s.writeServiceError(w, r, err, page)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]any{
		"folder": info,
		"page":   page,
	})
}

func (s *Server) handleClearAll(w http.ResponseWriter, _ *http.Request) {
	s.chat.ClearAllSessions()
	s.hub.Broadcast("sessions_cleared", map[string]any{"message": conversation.MessageSessionExpired})
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

// writeServiceError maps conversation errors to HTTP status codes. The three
// user-facing failures keep distinct codes and messages.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, page domain.Page) {
	level := slog.LevelInfo
	if !conversation.IsUserFacing(err) {
		level = slog.LevelError
	}
	s.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)

	message := conversation.ErrorMessage(err)
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		writeError(w, http.StatusGone, "session_expired", message)
	case errors.Is(err, domain.ErrTerminalEscalation):
		writeError(w, http.StatusConflict, "no_deeper_source", message)
	case errors.Is(err, domain.ErrNoResults):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "no_results", "message": message},
			"page":  page,
		})
	case errors.Is(err, domain.ErrEndOfResults):
		writeError(w, http.StatusNotFound, "end_of_results", message)
	case errors.Is(err, domain.ErrReleaseNotFound):
		writeError(w, http.StatusNotFound, "release_not_found", message)
	case errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrUnknownEngine),
		errors.Is(err, domain.ErrOptionOutOfRange):
		writeError(w, http.StatusBadRequest, "invalid_request", message)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", message)
	}
}

func pathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.PathValue("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user is required")
		return "", false
	}
	return user, true
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("request body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("request body is required")
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("invalid json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
