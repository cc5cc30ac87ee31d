// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preset wires the preset generation pipeline into the presetd
// HTTP service.
//
// The service owns the long-lived pieces: the LLM backend, the cache
// connection, the Prometheus recorder, and the OpenTelemetry tracer
// provider. Everything request-scoped lives in the pipeline package.
package preset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/PresetForge/services/llm"
	"github.com/AleutianAI/PresetForge/services/preset/cache"
	"github.com/AleutianAI/PresetForge/services/preset/observability"
	"github.com/AleutianAI/PresetForge/services/preset/pipeline"
	"github.com/AleutianAI/PresetForge/services/preset/routes"
	"github.com/AleutianAI/PresetForge/services/preset/validation"
)

// ServiceName identifies presetd in traces and logs.
const ServiceName = "presetd"

// =============================================================================
// Interfaces
// =============================================================================

// Service is a runnable presetd instance.
//
// # Thread Safety
//
// Router is safe to call at any time. Run and Close are called once.
type Service interface {
	// Run starts the HTTP server and blocks until it stops. Resources are
	// released when Run returns.
	Run() error

	// Router returns the configured Gin engine, mainly for tests.
	Router() *gin.Engine

	// Close releases the cache and tracer without running the server.
	Close() error
}

// Options carries optional collaborators for New.
//
// # Fields
//
//   - Backend: Used instead of llm.NewClient(cfg.LLMBackend) when set.
//   - Connector: Used instead of cache.ConnectorFromURL(cfg.CacheURL).
//   - Registry: Metrics registry. Default: a fresh registry also served
//     on /metrics together with the Go runtime collectors.
//   - Logger: Default: slog.Default().
type Options struct {
	Backend   llm.LLMClient
	Connector cache.Connector
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	logger        *slog.Logger
	router        *gin.Engine
	backend       llm.LLMClient
	cache         *cache.Client
	registry      *prometheus.Registry
	pipeline      *pipeline.Pipeline
	tracerCleanup func(context.Context)
}

// New builds a Service from cfg.
//
// # Description
//
// New initializes, in order: tracing (only when OTelEndpoint is set), the
// metrics registry, the LLM backend (only when generation is enabled), the
// cache client, the pipeline and the router. The cache connects lazily, so
// an unreachable cache never fails startup.
//
// # Inputs
//
//   - cfg: Service configuration. Zero numeric values use defaults.
//   - opts: Optional collaborators. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil when the tracer, backend, or cache URL is unusable.
//
// # Examples
//
//	cfg, err := preset.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := preset.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
func New(cfg Config, opts *Options) (Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	s := &service{
		config:   applyConfigDefaults(cfg),
		logger:   opts.Logger,
		registry: opts.Registry,
		backend:  opts.Backend,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if err := s.initBackend(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initCache(opts.Connector); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	validator := validation.NewWithBounds(validation.ClampBounds(
		s.config.Pipeline.MinActivities, s.config.Pipeline.MaxActivities))
	p, err := pipeline.New(s.config.Pipeline, pipeline.Dependencies{
		Backend:   s.backend,
		Cache:     s.cache,
		Validator: validator,
		Recorder:  observability.NewPrometheusRecorder(s.registry),
		Logger:    s.logger,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	s.pipeline = p

	s.initRouter(validator)
	return s, nil
}

// Run starts the HTTP server on the configured port.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("Starting presetd server",
		"port", s.config.Port,
		"generation_enabled", s.config.Pipeline.GenerationEnabled,
		"ensemble_enabled", s.config.Pipeline.EnsembleEnabled)

	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Close() error {
	s.cleanup()
	return nil
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills zero service-level values. Pipeline and cache
// defaults are applied by their own packages.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.CacheURL == "" {
		cfg.CacheURL = "memory://"
	}
	return cfg
}

// initTracer installs an OTLP gRPC trace exporter as the global provider.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (internal collector).
func (s *service) initTracer() (func(context.Context), error) {
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
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
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
		if err := traceProvider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer provider", "error", err)
		}
		if err := conn.Close(); err != nil {
			s.logger.Warn("failed to close OTLP connection", "error", err)
		}
	}

	return cleanup, nil
}

// initBackend creates the LLM client unless one was injected. No backend
// is needed when generation is disabled.
func (s *service) initBackend() error {
	if s.backend != nil || !s.config.Pipeline.GenerationEnabled {
		return nil
	}
	client, err := llm.NewClient(s.config.LLMBackend)
	if err != nil {
		return err
	}
	s.backend = client
	return nil
}

func (s *service) initCache(connector cache.Connector) error {
	if connector == nil {
		c, err := cache.ConnectorFromURL(s.config.CacheURL)
		if err != nil {
			return err
		}
		connector = c
	}
	cacheCfg := s.config.Cache
	if cacheCfg.Logger == nil {
		cacheCfg.Logger = s.logger
	}
	s.cache = cache.NewClient(connector, cacheCfg)
	return nil
}

func (s *service) initRouter(validator *validation.Validator) {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(ServiceName))

	routes.SetupRoutes(s.router, s.pipeline, validator, s.registry)
}

// cleanup releases the cache and flushes traces. Safe to call twice.
func (s *service) cleanup() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Cache close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}
