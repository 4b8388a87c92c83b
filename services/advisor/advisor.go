// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package advisor provides the core advisor service for AleutianAdvisor.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, the inference client, dataset profiling,
// the multi-agent pipeline, session lifecycle, and observability
// infrastructure.
//
// # Usage
//
//	cfg := advisor.Config{Port: 12310}
//	svc, err := advisor.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(context.Background()))
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/handlers"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/middleware"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/observability"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/routes"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/sessions"
	"github.com/AleutianAI/AleutianAdvisor/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the advisor service.
//
// Run blocks until the context is cancelled or the server fails.
// Router exposes the configured Gin engine for integration tests.
type Service interface {
	Run(ctx context.Context) error
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds advisor configuration options. All fields are optional;
// New applies defaults for zero values.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// LLMBackend specifies the inference provider.
	// Valid values: "ollama", "openai", "local". Default: "ollama".
	LLMBackend string

	// OllamaBaseURL overrides the OLLAMA_BASE_URL environment variable.
	// Default: "http://localhost:11434" when the env var is unset.
	OllamaBaseURL string

	// DefaultModel is the model used when a request does not override it.
	// Default: "llama3.2".
	DefaultModel string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317". Set to "disabled" to skip
	// tracer setup entirely (useful for bare-metal dev runs).
	OTelEndpoint string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug".
	GinMode string

	// UploadDir is where uploaded datasets are staged.
	// Default: "./uploads".
	UploadDir string

	// UIDir is the directory of static UI assets served under /ui.
	// Empty disables the built-in UI.
	UIDir string

	// AllowedOrigins restricts CORS. Empty allows any origin, which is
	// the expected setting for a localhost single-user deployment.
	AllowedOrigins []string

	// SessionTTL is the idle lifetime of a session. Default: 1 hour.
	SessionTTL time.Duration

	// SweepInterval is how often expired sessions are reaped.
	// Default: 10 minutes.
	SweepInterval time.Duration

	// AuditLogPath is the session lifecycle audit log file.
	// Default: "./logs/session_audit.log". Empty string after defaults
	// are applied is not possible; set SweepInterval instead to tune.
	AuditLogPath string

	// PipelineTimeout bounds one full pipeline run. Default: 5 minutes.
	PipelineTimeout time.Duration

	// MaxRows caps how many rows are profiled per upload.
	// Default: dataset.DefaultMaxRows.
	MaxRows int

	// LogLevel is the minimum log level ("debug", "info", "warn",
	// "error"). Default: "info".
	LogLevel string

	// LogDir enables JSON file logging when set.
	LogDir string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// Thread-safe after construction; all fields are read-only once New
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	logger        *logging.Logger
	llmClient     llm.LLMClient
	modelLister   llm.ModelLister
	ollamaBaseURL string
	store         *sessions.Store
	auditLog      *sessions.AuditLog
	reaper        *sessions.Reaper
	hub           *handlers.Hub
	metrics       *observability.AdvisorMetrics
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new advisor Service with the given configuration.
//
// Initialization order matters: logging first so later failures are
// reported through the structured logger, then tracing and metrics,
// then the inference client, then sessions, and finally the router
// which wires everything together.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(s.config.LogLevel),
		LogDir:  s.config.LogDir,
		Service: "advisor",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	s.logger = logger
	logger.SetAsDefault()

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.metrics = observability.InitMetrics()
	slog.Info("Initialized Prometheus metrics for the advisor")

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.initSessions()
	s.hub = handlers.NewHub()
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails. Shutdown drains in-flight requests for up to
// ten seconds before forcing the listener closed.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	if err := s.reaper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session reaper: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting advisor server",
		"port", s.config.Port,
		"llm_backend", s.config.LLMBackend,
		"default_model", s.config.DefaultModel,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Shutting down advisor server")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// Router returns the underlying Gin engine for testing. Callers must
// not register additional routes after construction.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.2"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = sessions.DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = sessions.DefaultSweepInterval
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = "./logs/session_audit.log"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for the internal
// container network the collector runs on.
func (s *service) initTracer() (func(context.Context), error) {
	if s.config.OTelEndpoint == "disabled" {
		slog.Info("OpenTelemetry tracing disabled")
		return func(context.Context) {}, nil
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("advisor-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initLLMClient initializes the inference client for the configured
// backend and wraps it with the retrying rate-limited client.
//
// Ollama is the primary backend: it is the only one that supports
// model listing and per-request model overrides.
func (s *service) initLLMClient() error {
	var (
		inner llm.LLMClient
		err   error
	)

	switch s.config.LLMBackend {
	case "ollama":
		baseURL := s.config.OllamaBaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		if baseURL == "" {
			return fmt.Errorf("Ollama base URL not configured (set OLLAMA_BASE_URL)")
		}
		client := llm.NewOllamaClientWith(baseURL, s.config.DefaultModel)
		s.ollamaBaseURL = baseURL
		s.modelLister = client
		inner = client
		slog.Info("Using Ollama LLM backend")
	case "openai":
		inner, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "local":
		inner, err = llm.NewLocalLlamaCppClient()
		slog.Info("Using Local Llama.cpp LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to Ollama", "backend", s.config.LLMBackend)
		inner, err = llm.NewOllamaClient()
	}
	if err != nil {
		return err
	}

	s.llmClient = s.wrapRetrying(inner)
	return nil
}

// wrapRetrying applies the shared retry and rate-limit policy, wired
// to the retry counter metric.
func (s *service) wrapRetrying(inner llm.LLMClient) llm.LLMClient {
	return llm.NewRetrying(inner, llm.RetryConfig{}, func(error) {
		s.metrics.RecordRetry()
	})
}

// clientFor returns an inference client for a per-request model
// override. Only the Ollama backend supports overrides; other
// backends fall back to the default client.
func (s *service) clientFor(model string) llm.LLMClient {
	if s.config.LLMBackend != "ollama" || model == "" || s.ollamaBaseURL == "" {
		return s.llmClient
	}
	return s.wrapRetrying(llm.NewOllamaClientWith(s.ollamaBaseURL, model))
}

// initSessions sets up the session store, its audit log, and the
// expiry reaper. A broken audit log is not fatal; slog still captures
// the lifecycle events.
func (s *service) initSessions() {
	audit, err := sessions.NewAuditLog(s.config.AuditLogPath)
	if err != nil {
		slog.Warn("Failed to create session audit log, continuing without it",
			"path", s.config.AuditLogPath,
			"error", err)
	} else {
		s.auditLog = audit
	}

	s.store = sessions.NewStore(sessions.Config{
		TTL:   s.config.SessionTTL,
		Audit: s.auditLog,
	})
	s.reaper = sessions.NewReaper(s.store, s.config.SweepInterval)
}

// initRouter sets up the Gin HTTP router with middleware and routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware("advisor-service"))
	s.router.Use(middleware.CORS(s.config.AllowedOrigins))
	s.router.Use(middleware.RequestLogger())

	deps := handlers.AnalyzeDeps{
		Client:    s.llmClient,
		ClientFor: s.clientFor,
		Store:     s.store,
		Hub:       s.hub,
		Metrics:   s.metrics,
		UploadDir: s.config.UploadDir,
		Timeout:   s.config.PipelineTimeout,
		MaxRows:   s.config.MaxRows,
	}
	routes.SetupRoutes(s.router, deps, s.modelLister, routes.Config{
		UIDir:        s.config.UIDir,
		DefaultModel: s.config.DefaultModel,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.reaper != nil {
		s.reaper.Stop()
	}
	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil {
			slog.Warn("Session audit log close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	if s.logger != nil {
		if err := s.logger.Close(); err != nil {
			slog.Warn("Log file close error", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
