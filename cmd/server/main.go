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

	"code-assistant/internal/config"
	"code-assistant/internal/database"
	"code-assistant/internal/handlers"
	"code-assistant/internal/middleware"
	"code-assistant/internal/repository"
	"code-assistant/internal/router"
	"code-assistant/internal/services"
	"code-assistant/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Code Assistant Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Conversation Store ────
	var store handlers.ConversationStore
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		store = repository.NewConversationRepo(pool)
	} else {
		store = repository.NewMemoryConversationRepo()
		log.Println("✓ DATABASE_URL not set, keeping conversations in memory")
	}

	// ──── Step 3: Redis Locks and Pub/Sub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	var (
		guard  services.InflightGuard
		events services.EventPublisher
		wsHub  *websocket.Hub
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		log.Println("✓ Redis connected")

		guard = services.NewRedisGuard(redisClients.Locks, services.ChatLockTTL)
		events = services.NewRedisPublisher(redisClients.Locks)
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth)
	} else {
		guard = services.NewMemoryGuard()
		wsHub = websocket.NewHub(nil, jwtAuth)
		events = wsHub
		log.Println("✓ REDIS_URL not set, using in-process locks and events")
	}
	log.Println("✓ WebSocket hub started")

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiRequestsPerMin,
		cfg.GeminiConcurrentReqs,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	log.Println("✓ Gemini client initialized")

	// ──── Initialize Handlers ────
	fileExtractService := services.NewFileExtractService()
	conversationHandler := handlers.NewConversationHandler(store, jwtAuth)
	chatHandler := handlers.NewChatHandler(store, geminiService, fileExtractService, guard, events, cfg.MaxUploadBytes())

	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimitPerMin, time.Minute)
	defer chatLimiter.Stop()

	// ──── Step 5: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		conversationHandler,
		chatHandler,
		wsHub,
		chatLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No write timeout: thinking-mode answers can take minutes; the chat
		// handler bounds them at services.ChatLockTTL.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Code Assistant Backend ready on http://localhost:%s (%s)", cfg.Port, cfg.Env)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
