package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/invoice-extractor/backend/internal/api"
	"github.com/invoice-extractor/backend/internal/config"
	"github.com/invoice-extractor/backend/internal/extract"
	"github.com/invoice-extractor/backend/internal/llm"
	"github.com/invoice-extractor/backend/internal/llm/gemini"
	"github.com/invoice-extractor/backend/internal/llm/openai"
	"github.com/invoice-extractor/backend/internal/payload"
	"github.com/invoice-extractor/backend/internal/ratelimit"
	"github.com/invoice-extractor/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: failed to read .env: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Advanced.LogLevel),
	}))
	slog.SetDefault(logger)

	// Ensure the history directory exists
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("startup.directories_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator := newGenerator(ctx, cfg, logger)

	// Initialize history storage
	history, err := storage.Open(cfg.History.Driver, cfg.History.Path, cfg.History.MaxEntries)
	if err != nil {
		logger.Error("startup.history_failed", "driver", cfg.History.Driver, "error", err)
		os.Exit(1)
	}
	if history != nil {
		defer history.Close()
	}

	shape, err := llm.NewShapeChecker()
	if err != nil {
		logger.Error("startup.schema_failed", "error", err)
		os.Exit(1)
	}

	svc := extract.NewService(extract.Config{
		Generator: generator,
		Encoder:   payload.NewEncoder(nil),
		Shape:     shape,
		History:   history,
		Timeout:   cfg.ModelTimeout(),
		Logger:    logger,
	})

	limiter := api.NewLimiterStore(cfg)

	// Start background rate limit cleanup
	if ws, ok := limiter.(*ratelimit.WindowStore); ok {
		interval := time.Duration(cfg.Extraction.RateLimit.CleanupIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = cfg.RateWindow()
		}
		go ws.Run(ctx, interval, logger)
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Config:    cfg,
		Extractor: svc,
		History:   history,
		Provider:  generator.Provider(),
		Model:     generator.Model(),
		Version:   Version,
		Logger:    logger,
	})
	e := api.NewRouter(cfg, handlers, limiter, logger)

	// Configure server with settings from YAML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, *configPath, generator)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.StartServer(s)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server.failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("server.shutdown", "timeout_s", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("server.shutdown_failed", "error", err)
		}
	}
}

// newGenerator builds the configured model client. When it cannot be built
// the server still starts and every extraction fails with the reason.
func newGenerator(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) llm.Generator {
	settings := llm.Settings{
		Model:            cfg.Model.Name,
		Temperature:      cfg.Model.Temperature,
		TopP:             cfg.Model.TopP,
		TopK:             cfg.Model.TopK,
		MaxOutputTokens:  cfg.Model.MaxOutputTokens,
		ResponseMIMEType: cfg.Model.ResponseMIMEType,
	}

	if !cfg.APIKeyConfigured() {
		keyVar := "GOOGLE_API_KEY"
		if cfg.Model.Provider == config.ProviderOpenAI {
			keyVar = "OPENAI_API_KEY"
		}
		logger.Warn("startup.api_key_missing",
			"message", keyVar+" not found in environment variables",
			"provider", cfg.Model.Provider,
		)
		return &llm.Unavailable{ProviderName: cfg.Model.Provider, ModelName: settings.Model, Err: llm.ErrMissingAPIKey}
	}

	var (
		gen llm.Generator
		err error
	)
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		gen, err = openai.NewClient(openai.Config{
			APIKey:   cfg.Model.APIKey,
			BaseURL:  cfg.Model.BaseURL,
			Settings: settings,
		}, logger)
	default:
		gen, err = gemini.NewClient(ctx, gemini.Config{
			APIKey:   cfg.Model.APIKey,
			BaseURL:  cfg.Model.BaseURL,
			Settings: settings,
		}, logger)
	}
	if err != nil {
		logger.Warn("startup.model_client_failed", "provider", cfg.Model.Provider, "error", err)
		return &llm.Unavailable{ProviderName: cfg.Model.Provider, ModelName: settings.Model, Err: err}
	}
	return gen
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printBanner(cfg *config.AppConfig, configPath string, gen llm.Generator) {
	history := cfg.History.Driver
	if history == config.HistoryDuckDB {
		history += " (" + cfg.History.Path + ")"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Invoice Extractor API                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Model:      %-45s║\n", gen.Provider()+"/"+gen.Model())
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  History:   %-46s║\n", history)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
