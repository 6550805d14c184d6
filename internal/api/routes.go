// routes.go - Router construction and route registration
package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/invoice-extractor/backend/internal/config"
	"github.com/invoice-extractor/backend/internal/payload"
	"github.com/invoice-extractor/backend/internal/ratelimit"
	"github.com/invoice-extractor/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Config    *config.AppConfig
	Extractor Extractor
	History   storage.Store // nil when history is disabled
	Provider  string
	Model     string
	Version   string
	Logger    *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Extract ExtractHandler
	History HistoryHandler
	GSTIN   GSTINHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	cfg := deps.Config
	historyDriver := cfg.History.Driver
	if deps.History == nil {
		historyDriver = config.HistoryNone
	}

	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Provider, deps.Model, historyDriver),
		Extract: NewExtractHandler(
			deps.Extractor,
			payload.NewAllowList(cfg.Extraction.AllowedTypes),
			cfg.Extraction.MaxFileSize,
			cfg.Advanced.ExposeErrorDetails,
			deps.Logger,
		),
		History: NewHistoryHandler(deps.History),
		GSTIN:   NewGSTINHandler(),
	}
}

// NewLimiterStore builds the rate limiter store selected by the config.
func NewLimiterStore(cfg *config.AppConfig) middleware.RateLimiterStore {
	rl := cfg.Extraction.RateLimit
	if rl.Strategy == config.StrategyTokenBucket {
		return ratelimit.NewTokenBucketStore(rl.Requests, cfg.RateWindow())
	}
	return ratelimit.NewWindowStore(rl.Requests, cfg.RateWindow())
}

// NewRouter creates the Echo instance with middleware and all routes.
// A nil limiter builds one from the config.
func NewRouter(cfg *config.AppConfig, handlers *Handlers, limiter middleware.RateLimiterStore, logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = NewLimiterStore(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	SetupMiddleware(e, cfg, logger)
	RegisterRoutes(e, handlers, limiter, cfg.Server.BodyLimit)
	return e
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, limiter middleware.RateLimiterStore, bodyLimit string) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// The limiter runs first so rejected uploads count too.
	e.POST("/extract", handlers.Extract.HandleExtract,
		rateLimiter(limiter),
		middleware.BodyLimit(bodyLimit),
	)

	apiGroup := e.Group("/api", middleware.BodyLimit(bodyLimit))

	// History routes
	apiGroup.GET("/history", handlers.History.HandleListHistory)
	apiGroup.GET("/history/export", handlers.History.HandleExportHistory)
	apiGroup.GET("/history/:id", handlers.History.HandleGetHistory)
	apiGroup.DELETE("/history/:id", handlers.History.HandleDeleteHistory)
	apiGroup.GET("/metrics", handlers.History.HandleMetrics)

	// GSTIN lookup
	apiGroup.GET("/gstin/:gstin", handlers.GSTIN.HandleCheckGSTIN)
}

func rateLimiter(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			if ws, ok := store.(*ratelimit.WindowStore); ok {
				if wait := ws.RetryAfter(identifier); wait > 0 {
					secs := int(math.Ceil(wait.Seconds()))
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
			}
			return NewRateLimitError()
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return NewBadRequestError("could not identify client")
		},
	})
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig, logger *slog.Logger) {
	// Use custom error handler
	e.HTTPErrorHandler = NewErrorHandler(ErrorHandlerConfig{
		MaxFileSize:   cfg.Extraction.MaxFileSize,
		ExposeDetails: cfg.Advanced.ExposeErrorDetails,
		Logger:        logger,
	})

	// Client identity for rate limiting and logs
	if cfg.Server.TrustProxyHeaders {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	// Request logging
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !cfg.Advanced.EnableRequestLogging || c.Path() == "/health"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Int64("elapsed_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "http.request", attrs...)
			return nil
		},
	}))

	// Add recovery
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	// Compression middleware
	if cfg.Server.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Server.CompressionLevel,
		}))
	}

	// CORS configuration
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowCredentials: true,
	}))
}
