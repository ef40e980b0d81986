package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "releasefinder/internal/api/http"
	"releasefinder/internal/app"
	"releasefinder/internal/conversation"
	"releasefinder/internal/folder"
	"releasefinder/internal/metrics"
	"releasefinder/internal/providers/llm"
	"releasefinder/internal/search"
	"releasefinder/internal/session"
	"releasefinder/internal/tasks"
	"releasefinder/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "releasefinder", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	providers := app.BuildProviders(cfg, logger)
	logger.Info("configuration loaded",
		slog.String("service", "releasefinder"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.Int("providers", len(providers)),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Bool("hasOpenAIKey", cfg.OpenAIAPIKey != ""),
		slog.Bool("tracing", cfg.OTLPEndpoint != ""),
	)
	if len(providers) == 0 {
		logger.Warn("no metadata providers configured; every search will come back empty")
	}

	searchService := search.NewService(providers, cfg.RequestTimeout, search.WithLogger(logger))
	chatService := conversation.NewService(searchService, session.NewStore(), buildConversationOptions(cfg, logger)...)

	apiServer := apihttp.NewServer(chatService,
		apihttp.WithLogger(logger),
		apihttp.WithProviderStatus(searchService),
		apihttp.WithRateLimit(cfg.HTTPRateLimitRPS, cfg.HTTPRateLimitBurst),
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Chat sockets are long-lived; write deadlines are set per message instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("release finder started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Any("engines", searchService.Engines()),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	apiServer.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("release finder stopped")
}

func buildConversationOptions(cfg app.Config, logger *slog.Logger) []conversation.Option {
	opts := []conversation.Option{
		conversation.WithLogger(logger),
		conversation.WithEnrichConcurrency(int64(cfg.EnrichConcurrency)),
	}

	if publisher := buildTaskQueue(cfg, logger); publisher != nil {
		opts = append(opts, conversation.WithPublisher(publisher))
	}

	llmClient := buildLLMClient(cfg, logger)
	if llmClient == nil {
		return opts
	}
	opts = append(opts, conversation.WithIntentClassifier(llmClient))
	if cfg.FolderLLM {
		opts = append(opts, conversation.WithFolderParser(folder.NewParser(
			folder.WithCollaborator(llmClient),
			folder.WithLogger(logger),
		)))
	}
	return opts
}

// buildTaskQueue returns nil when Redis is not configured or not reachable, in
// which case the conversation falls back to logging tasks.
func buildTaskQueue(cfg app.Config, logger *slog.Logger) tasks.Publisher {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		logger.Info("redis not configured, download tasks are logged only")
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, download tasks are logged only", slog.String("error", err.Error()))
		return nil
	}
	queue := tasks.NewRedisQueue(redis.NewClient(redisOpts), cfg.TaskQueueKey)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := queue.Ping(ctx); err != nil {
		logger.Warn("redis not reachable, download tasks are logged only", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis task queue connected",
		slog.String("addr", redisOpts.Addr),
		slog.String("key", cfg.TaskQueueKey),
	)
	return queue
}

func buildLLMClient(cfg app.Config, logger *slog.Logger) *llm.Client {
	if cfg.OpenAIAPIKey == "" {
		logger.Info("openai api key not configured, intent and folder parsing use local rules")
		return nil
	}
	client, err := llm.New(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Warn("openai client disabled", slog.String("error", err.Error()))
		return nil
	}
	return client
}
