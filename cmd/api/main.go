// Package main is the entry point for the referral intake API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/channel"
	"github.com/smart-directory/referral-service/internal/config"
	"github.com/smart-directory/referral-service/internal/events"
	"github.com/smart-directory/referral-service/internal/extract"
	"github.com/smart-directory/referral-service/internal/geocode"
	"github.com/smart-directory/referral-service/internal/handler"
	"github.com/smart-directory/referral-service/internal/llm"
	"github.com/smart-directory/referral-service/internal/match"
	"github.com/smart-directory/referral-service/internal/middleware"
	"github.com/smart-directory/referral-service/internal/orchestrator"
	"github.com/smart-directory/referral-service/internal/store"
	"github.com/smart-directory/referral-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting referral intake server")

	ctx := context.Background()

	// Connect to NATS. The event stream is optional: without it the service
	// still serves referrals, it just publishes no domain events.
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.Connect(ctx, cfg.NATSURL, cfg.NATSToken, log)
		if err != nil {
			log.Warn("failed to connect to NATS, domain events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Initialize LLM client
	apiKey := cfg.OpenAIAPIKey
	if llm.Provider(cfg.LLMProvider) == llm.ProviderAnthropic {
		apiKey = cfg.AnthropicAPIKey
	}
	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), apiKey, cfg.CompletionModel)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	// Embeddings always go through OpenAI; Anthropic has no embedding API.
	embedder, err := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Error("failed to create embedder", zap.Error(err))
		os.Exit(1)
	}

	// Initialize geocoder
	geocoder, err := geocode.NewGoogleClient(cfg.GoogleMapsAPIKey, cfg.CountryName, cfg.CountryCode, cfg.ProviderTimeout, log)
	if err != nil {
		log.Error("failed to create geocoding client", zap.Error(err))
		os.Exit(1)
	}

	// Initialize the document store
	data := store.NewMemory()

	// Initialize domain services
	engine := match.NewEngine(data, embedder, match.Config{
		SymptomWeight: cfg.MatchSymptomWeight,
		ServiceWeight: cfg.MatchServiceWeight,
		Threshold:     cfg.MatchThreshold,
		MaxDistanceKM: cfg.MatchRadiusKM,
		TopK:          cfg.MatchTopK,
	}, log)

	whatsapp := channel.NewWhatsApp(cfg.WhatsAppAPIBase, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken, log)

	deps := orchestrator.Deps{
		Conversations: data,
		Referrals:     data,
		Archive:       data,
		Patients:      data,
		Matcher:       engine,
		Extractor:     extract.NewExtractor(llmClient, log),
		Confirmer:     extract.NewClassifier(llmClient),
		Translator:    extract.NewTranslator(llmClient, log),
		Geocoder:      geocoder,
		Channel:       whatsapp,
		Logger:        log,
		CountryName:   cfg.CountryName,
	}
	if publisher != nil {
		deps.Events = publisher
	}
	orch := orchestrator.New(deps)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(publisher)
	webhookHandler := handler.NewWebhookHandler(orch, cfg.WhatsAppVerifyToken, cfg.HandleTimeout, log)
	adminHandler := handler.NewAdminHandler(data, data)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Liveness probe for the hosting platform
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("App is alive"))
	})

	// Messaging webhook (verified by token, not JWT)
	r.Get("/webhook", webhookHandler.Verify)
	r.Post("/webhook", webhookHandler.Receive)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Admin API with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/collections", adminHandler.ListCollections)
		r.Get("/collections/{name}", adminHandler.BrowseCollection)
		r.Get("/collections/{name}/{id}", adminHandler.GetDocument)
		r.Delete("/collections/{name}/{id}", adminHandler.DeleteDocument)
		r.Get("/referrals/{senderID}", adminHandler.ListReferrals)
		r.Put("/partners", adminHandler.UpsertPartner)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
