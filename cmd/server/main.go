package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chathub-backend/internal/config"
	"chathub-backend/internal/database"
	"chathub-backend/internal/handlers"
	"chathub-backend/internal/middleware"
	"chathub-backend/internal/repository"
	"chathub-backend/internal/router"
	"chathub-backend/internal/services"
	"chathub-backend/internal/session"
	"chathub-backend/internal/websocket"
)

func main() {
	log.Printf("🚀 Starting %s v%s...", config.AppName, config.AppVersion)

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: PostgreSQL (connection per scope) ────
	db := database.NewDB(database.Config{
		DSN:            cfg.PostgresDSN(),
		MaxRetries:     cfg.DBMaxRetries,
		RetryDelay:     cfg.DBRetryDelay,
		ConnectTimeout: 10 * time.Second,
	})
	if db.TestConnection(context.Background()) {
		log.Printf("✓ PostgreSQL reachable (%s@%s:%d/%s)", cfg.PostgresUser, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	} else {
		log.Printf("⚠ PostgreSQL not reachable at %s:%d, dashboard will show no data until it is", cfg.PostgresHost, cfg.PostgresPort)
	}

	// ──── Step 3: Run Database Migrations ────
	if cfg.RunMigrations {
		if err := database.RunMigrations(context.Background(), db, cfg.MigrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")
	}

	// ──── Step 4: Initialize Redis Client (optional) ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("✓ Redis not configured, session events stay in-process")
	}

	// ──── Step 5: Sessions & Auth ────
	var authenticator *services.Authenticator
	if cfg.LoginPasswordHash != "" {
		authenticator = services.NewAuthenticatorFromHash(cfg.LoginPasswordHash)
	} else {
		authenticator, err = services.NewAuthenticator(cfg.LoginPassword)
		if err != nil {
			log.Fatalf("✗ Auth initialization failed: %v", err)
		}
	}

	sessionStore := session.NewStore(cfg.SessionSecret, cfg.SessionTTL, cfg.Env == "production")
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sessionStore.StartSweeper(sweepCtx, 5*time.Minute)
	log.Printf("✓ Session store ready (idle TTL %s)", cfg.SessionTTL)

	// ──── Initialize Repositories & Services ────
	listingRepo := repository.NewListingRepo(db)
	metricsRepo := repository.NewMetricsRepo(db)
	dashboardService := services.NewDashboardService(listingRepo, metricsRepo, db, services.NewChartRenderer())
	webhookClient := services.NewWebhookClient(nil)

	for _, p := range cfg.ChatbotList() {
		if _, err := cfg.Chatbot(p.Key); err != nil {
			log.Printf("⚠ Chatbot %s is misconfigured: %v", p.Key, err)
		}
	}

	// ──── Step 6: Start WebSocket Hub ────
	socketAuth := middleware.NewSocketAuth(cfg.SessionSecret)
	wsHub := websocket.NewHub(redisClient, socketAuth, sessionStore)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	views, err := handlers.NewViews()
	if err != nil {
		log.Fatalf("✗ Template parsing failed: %v", err)
	}
	authHandler := handlers.NewAuthHandler(authenticator, sessionStore, views)
	hubHandler := handlers.NewHubHandler(cfg, handlers.SystemInfo{
		Env:        cfg.Env,
		Port:       cfg.Port,
		Database:   cfg.PostgresDB,
		WebhookURL: cfg.WebhookURL,
		Chatbots:   len(cfg.Chatbots),
	}, views)
	chatHandler := handlers.NewChatHandler(cfg, webhookClient, wsHub, socketAuth, views)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, cfg, views)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		sessionStore,
		authHandler,
		hubHandler,
		chatHandler,
		dashboardHandler,
		wsHub,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // longest webhook timeout plus DB retries
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stopSweeper()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ %s ready on http://localhost:%s", config.AppName, cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
