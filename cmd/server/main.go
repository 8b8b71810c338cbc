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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/tarotdeck/backend/internal/config"
	"github.com/tarotdeck/backend/internal/handler"
	appMiddleware "github.com/tarotdeck/backend/internal/middleware"
	"github.com/tarotdeck/backend/internal/repository"
	"github.com/tarotdeck/backend/internal/service"
	"github.com/tarotdeck/backend/internal/ws"
	"github.com/tarotdeck/backend/pkg/assistant"
	"github.com/tarotdeck/backend/pkg/crypto"
)

func main() {
	// Load .env file if present (for local development)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Failed to load .env: %v", err)
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("❌ Migration error: %v", err)
	}
	log.Println("✅ Database connected & migrated")

	// Initialize encryptor
	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("❌ Encryption error: %v", err)
	}

	// Redis is optional: webhook dedupe falls back to Postgres, the sweeper runs unlocked.
	var (
		events service.EventLog = repository.NewEventRepository(db)
		locker service.Locker
		redis  handler.Pinger
	)
	if cfg.RedisURL != "" {
		store, err := repository.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis not available: %v (using Postgres for webhook dedupe)", err)
		} else {
			defer store.Close()
			events, locker, redis = store, store, store
		}
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		log.Fatalf("❌ Payment gateway error: %v", err)
	}
	log.Printf("💳 Payment provider: %s", gateway.Name())

	bot := assistant.NewClient(cfg.Assistant.URL, cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.Timeout)
	if cfg.Assistant.APIKey == "" {
		log.Println("⚠️  ASSISTANT_API_KEY not set, chat will answer with the fallback reply")
	}

	// Initialize services
	userRepo := repository.NewUserRepository(db)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, userRepo)

	// Seed admin user on first startup
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatalf("❌ Admin seed error: %v", err)
	}

	readingSvc := service.NewReadingService(repository.NewReadingRepository(db), enc, bot, cfg.RateLimitWindow)
	subSvc := service.NewSubscriptionService(
		repository.NewPaymentRepository(db),
		gateway,
		events,
		domainPricing(cfg),
		cfg.FrontendURL,
	)
	ticketSvc := service.NewTicketService(repository.NewTicketRepository(db))
	statsSvc := service.NewStatsService(repository.NewStatsRepository(db))

	var googleAuth *service.GoogleAuth
	if cfg.Google.Enabled() {
		googleAuth, err = service.NewGoogleAuth(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL, authSvc)
		if err != nil {
			log.Printf("⚠️  Google sign-in disabled: %v", err)
			googleAuth = nil
		} else {
			log.Println("✅ Google sign-in enabled")
		}
	}

	// Start expiry sweeper
	if cfg.ExpirySweepInterval > 0 {
		service.NewExpirySweeper(userRepo, locker, cfg.ExpirySweepInterval).Start(ctx)
		log.Printf("🧹 Premium expiry sweep every %s", cfg.ExpirySweepInterval)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authSvc, googleAuth, cfg.Google.FrontendRedirect)
	healthHandler := handler.NewHealthHandler(db, redis)
	accountHandler := handler.NewAccountHandler(authSvc)
	plansHandler := handler.NewPlansHandler(subSvc)
	readingHandler := handler.NewReadingHandler(readingSvc)
	paymentHandler := handler.NewPaymentHandler(subSvc)
	ticketHandler := handler.NewTicketHandler(ticketSvc)
	adminHandler := handler.NewAdminHandler(statsSvc, subSvc, ticketSvc)
	chatHandler := ws.NewChatHandler(authSvc, readingSvc, cfg.CORSOrigins)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	defer globalRL.Close()
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)
	r.Post("/api/payment/webhook", paymentHandler.Webhook) // Public webhook, verified by the gateway

	// Auth routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/register", authHandler.Register)
		if googleAuth != nil {
			r.Get("/api/auth/google", authHandler.GoogleStart)
			r.Get("/api/auth/google/callback", authHandler.GoogleCallback)
		}
	})

	// WebSocket chat (auth via query param)
	r.Get("/api/readings/{id}/chat", chatHandler.Handle)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		// Auth
		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/limits", readingHandler.Limits)

		// Readings
		r.Get("/api/readings", readingHandler.List)
		r.Post("/api/readings", readingHandler.Create)
		r.Get("/api/readings/{id}/messages", readingHandler.Messages)
		r.Post("/api/readings/{id}/messages", readingHandler.SendMessage)
		r.Get("/api/readings/{id}", readingHandler.Get)
		r.Delete("/api/readings/{id}", readingHandler.Delete)

		// Payment routes
		r.Post("/api/payment/checkout", paymentHandler.CreateCheckout)
		r.Get("/api/payment/history", paymentHandler.History)
		r.Get("/api/payment/{id}/status", paymentHandler.Status)

		// Support tickets
		r.Get("/api/tickets", ticketHandler.List)
		r.Post("/api/tickets", ticketHandler.Create)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/stats", adminHandler.GetStats)
			r.Get("/api/admin/users", accountHandler.List)
			r.Post("/api/admin/users", accountHandler.Create)
			r.Delete("/api/admin/users/{id}", accountHandler.Delete)
			r.Get("/api/admin/payments", adminHandler.ListPayments)
			r.Post("/api/admin/payments/{id}/activate", adminHandler.ActivatePayment)
			r.Get("/api/admin/tickets", adminHandler.ListTickets)
			r.Post("/api/admin/tickets/{id}/reply", adminHandler.ReplyTicket)
			r.Post("/api/admin/tickets/{id}/close", adminHandler.CloseTicket)
			r.Get("/api/users", accountHandler.List)
			r.Post("/api/users", accountHandler.Create)
			r.Delete("/api/users/{id}", accountHandler.Delete)
		})
	})

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("🛑 Shutting down...")
		stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("🔮 Tarot Backend listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("❌ Server error: %v", err)
	}
}
