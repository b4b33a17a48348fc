package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/talknote/talknote/internal/capture"
	"github.com/talknote/talknote/internal/config"
	"github.com/talknote/talknote/internal/database"
	"github.com/talknote/talknote/internal/handlers"
	"github.com/talknote/talknote/internal/logger"
	"github.com/talknote/talknote/internal/middleware"
	"github.com/talknote/talknote/internal/services/transcribe"
	"github.com/talknote/talknote/internal/store"
	"github.com/talknote/talknote/internal/telemetry"
)

// captureMIMEType is the container format clients upload audio in
const captureMIMEType = "audio/webm"

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for transcription API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("transcribe_provider", cfg.TranscribeProvider),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	otelActive := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.Init(context.Background(), "talknote-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				otelActive = true
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to Redis, the durable note store
	db, err := database.New(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.Ping(pingCtx); err != nil {
		pingCancel()
		zapLogger.Fatal("failed_to_ping_redis", zap.Error(err))
	}
	pingCancel()
	zapLogger.Info("connected_to_redis")

	// Load the note collections into memory; memory stays authoritative
	// for the life of the process
	notes := store.New(db, zapLogger)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := notes.Load(loadCtx); err != nil {
		loadCancel()
		zapLogger.Fatal("failed_to_load_notes", zap.Error(err))
	}
	loadCancel()

	active, trash := notes.Counts()
	zapLogger.Info("notes_loaded",
		zap.Int("active", active),
		zap.Int("trash", trash),
	)

	// Initialize the transcription provider
	provider, err := createTranscribeProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_transcribe_provider", zap.Error(err))
	}

	// One capture session per process
	manager := capture.NewManager(
		capture.NewUploadDevice(captureMIMEType),
		provider,
		notes,
		zapLogger,
		cfg.MaxCaptureBytes,
	)

	// Initialize handlers
	noteHandler := handlers.NewNoteHandler(notes)
	captureHandler := handlers.NewCaptureHandler(manager)
	themeHandler := handlers.NewThemeHandler(db)
	healthChecker := handlers.NewHealthChecker(db)

	// Setup router
	r := mux.NewRouter()

	zapLogger.Info("setting_up_middleware")

	if otelActive {
		r.Use(otelmux.Middleware("talknote-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.ContentType("/api/v1/capture/chunk"))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Note and theme routes
	notesRouter := apiRouter.PathPrefix("").Subrouter()
	notesRouter.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	notesRouter.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	noteHandler.RegisterRoutes(notesRouter)
	themeHandler.RegisterRoutes(notesRouter)

	// Capture routes: larger bodies for audio chunks, a longer timeout for
	// the transcription round trip, and a per-IP rate limit
	rateLimitMW, err := middleware.RateLimit(db.Client(), cfg.CaptureRateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	captureRouter := apiRouter.PathPrefix("/capture").Subrouter()
	captureRouter.Use(rateLimitMW)
	captureRouter.Use(middleware.MaxRequestSize(int64(cfg.MaxCaptureBytes)))
	captureRouter.Use(middleware.Timeout(middleware.CaptureRequestTimeout))
	captureHandler.RegisterRoutes(captureRouter)

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.CaptureRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	// Discard any in-flight capture session so its late result cannot land
	// during shutdown
	manager.Reset()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// createTranscribeProvider builds the configured transcription provider via
// the registry
func createTranscribeProvider(cfg *config.Config, logger *zap.Logger, debugMode bool) (transcribe.Provider, error) {
	registry := transcribe.NewProviderRegistry()
	registry.Register("gemini", func(conf map[string]string) (transcribe.Provider, error) {
		if conf["api_key"] == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		return transcribe.NewGeminiProvider(conf["api_key"], conf["base_url"], conf["model"], logger, debugMode), nil
	})
	registry.Register("openai", func(conf map[string]string) (transcribe.Provider, error) {
		if conf["api_key"] == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		return transcribe.NewOpenAIProvider(conf["api_key"], conf["base_url"], conf["model"], logger, debugMode), nil
	})

	switch cfg.TranscribeProvider {
	case "openai":
		return registry.GetProvider("openai", map[string]string{
			"api_key":  cfg.OpenAIKey,
			"base_url": cfg.OpenAIBaseURL,
			"model":    cfg.OpenAIModel,
		})
	default:
		return registry.GetProvider(cfg.TranscribeProvider, map[string]string{
			"api_key":  cfg.GeminiAPIKey,
			"base_url": cfg.GeminiBaseURL,
			"model":    cfg.GeminiModel,
		})
	}
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
