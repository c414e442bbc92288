package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pivotnews/newsroom/internal/api"
	"github.com/pivotnews/newsroom/internal/config"
	"github.com/pivotnews/newsroom/internal/db"
	"github.com/pivotnews/newsroom/internal/headlines"
	"github.com/pivotnews/newsroom/internal/images"
	"github.com/pivotnews/newsroom/internal/model"
	"github.com/pivotnews/newsroom/internal/notify"
	"github.com/pivotnews/newsroom/internal/search"
	"github.com/pivotnews/newsroom/internal/services"
	"github.com/pivotnews/newsroom/internal/wordpress"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	fmt.Println("newsroom v0.1.0")
	fmt.Println("Usage: newsroom serve")
}

func serve() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.Default()
	ctx := context.Background()

	store, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		slog.Error("database migration failed", "err", err)
		os.Exit(1)
	}

	// Runs left in the running state belong to a previous process that
	// died mid-run; fail them so the history is honest.
	if n, err := store.MarkOrphanedRunsFailed(ctx); err != nil {
		slog.Warn("orphaned run cleanup failed", "err", err)
	} else if n > 0 {
		slog.Info("orphaned runs marked failed", "count", n)
	}

	// Collaborator handles are constructed once and passed in explicitly.
	anthropicClient := model.NewAnthropicClient(cfg.Secrets.AnthropicAPIKey)
	openaiClient := model.NewOpenAIClient(cfg.Secrets.OpenAIAPIKey)

	var wpCreds []wordpress.Credentials
	for _, c := range cfg.WordPress {
		wpCreds = append(wpCreds, wordpress.Credentials{
			Slug:        c.Slug,
			Username:    c.Username,
			AppPassword: c.AppPassword,
		})
	}

	var senders []notify.Sender
	if cfg.Notifications.SlackWebhookURL != "" {
		senders = append(senders, notify.NewSlackSender(cfg.Notifications.SlackWebhookURL))
	}
	if cfg.Notifications.TelegramBotToken != "" && cfg.Notifications.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notifications.TelegramBotToken, cfg.Notifications.TelegramChatID))
	}

	recorder := services.NewRecorder(store, store)
	pipeline := services.NewPipeline(services.PipelineDeps{
		Recorder: recorder,
		Feeds:    store,
		Articles: store,
		Sites:    store,
		Config:   store,

		Headlines:   headlines.NewStockNewsClient(cfg.Secrets.StockNewsToken, logger),
		References:  search.NewJinaClient(cfg.Secrets.JinaAPIKey, logger),
		ImageSearch: search.NewGoogleCSEClient(cfg.Secrets.GoogleCSEKey, cfg.Secrets.GoogleCSECX, logger),
		Writer:      anthropicClient,
		Selector:    openaiClient,
		Editor:      openaiClient,
		SEO:         openaiClient,
		Fetcher:     images.NewFetcher(),
		Transform:   images.NewTransformer(),
		Publisher:   wordpress.NewClient(wpCreds),
		Notifier:    notify.NewNotifier(logger, senders...),

		Logger: logger,
	})

	scheduler := services.NewScheduler(pipeline, store, cfg.Scheduler.Cron, logger)
	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	history := services.NewRunHistory(store, store)
	srv := api.NewServer(pipeline, history, store, cfg.Server.APIToken)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting newsroom server", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
