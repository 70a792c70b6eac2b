package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/capitan"

	"wandernest-backend/internal/config"
	"wandernest-backend/internal/database"
	"wandernest-backend/internal/handlers"
	"wandernest-backend/internal/middleware"
	"wandernest-backend/internal/repository"
	"wandernest-backend/internal/router"
	"wandernest-backend/internal/services"
	"wandernest-backend/internal/websocket"
	"wandernest-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting WanderNest Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Provider Event Log ────
	observer := capitan.Observe(logProviderEvent)
	defer observer.Close()

	// ──── Step 3: PostgreSQL (optional) ────
	var pool *pgxpool.Pool
	var usageRepo *repository.UsageRepo
	if cfg.DatabaseURL != "" {
		p, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		pool = p
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")
		usageRepo = repository.NewUsageRepo(pool)
	} else {
		log.Println("• DATABASE_URL not set, usage history disabled")
	}

	// ──── Step 4: Redis (optional) ────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		c, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		rdb = c
		defer rdb.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("• REDIS_URL not set, using in-memory rate limiting")
	}

	// ──── Step 5: AI Providers ────
	httpClient := &http.Client{Transport: http.DefaultTransport}
	providers, err := services.NewProviders(context.Background(), cfg.ProviderConfigs(), httpClient)
	if err != nil {
		log.Fatalf("✗ AI provider initialization failed: %v", err)
	}
	defer services.CloseProviders(providers)

	secondary := services.LocalSecondary(providers, cfg.AIProvider, cfg.OllamaFallback)
	relay := services.NewChatRelay(services.RelayConfig{
		Preferred:    cfg.AIProvider,
		DemoFallback: cfg.AIDemoFallback,
		Timeout:      cfg.AITimeout(),
		Locale:       cfg.FallbackLocale,
		Currency:     cfg.DefaultCurrency,
	}, providers, secondary)

	health := relay.Health()
	log.Printf("✓ AI relay ready (provider: %s, key: %t, demo fallback: %t)", health.Provider, health.HasKey, health.DemoFallback)
	if secondary != nil {
		log.Printf("  Local fallback: %s", secondary.Name())
	}

	// ──── Step 6: Usage Recording ────
	var recorder services.UsageRecorder = services.NopRecorder{}
	var workerPool *worker.Pool
	switch {
	case rdb != nil && usageRepo != nil:
		recorder = services.NewQueueRecorder(rdb)
		workerPool = worker.NewPool(rdb, usageRepo, cfg.UsageWorkers)
		workerPool.Start()
		log.Printf("✓ Usage worker pool started (%d goroutines)", cfg.UsageWorkers)
	case usageRepo != nil:
		recorder = services.NewDirectRecorder(usageRepo)
		log.Println("✓ Usage recorded directly to PostgreSQL")
	}

	chatService := services.NewChatService(relay, recorder)

	// ──── Step 7: Rate Limiter ────
	var chatLimiter middleware.Limiter
	if rdb != nil {
		chatLimiter = middleware.NewRedisRateLimiter(rdb, "ai-chat", cfg.ChatRateLimit, time.Minute)
	} else {
		memLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit, time.Minute)
		defer memLimiter.Close()
		chatLimiter = memLimiter
	}

	// ──── Step 8: Handlers & WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	if !jwtAuth.Enabled() {
		log.Println("• SUPABASE_JWT_SECRET not set, AI routes are unauthenticated")
	}

	chatHandler := handlers.NewChatHandler(chatService, nil)
	if usageRepo != nil {
		chatHandler = handlers.NewChatHandler(chatService, usageRepo)
	}
	wsHub := websocket.NewHub(chatService, jwtAuth, chatLimiter)
	log.Println("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	r := router.New(jwtAuth, chatLimiter, chatHandler, wsHub, cfg.FrontendURL)

	// A chat may wait on the primary and the local fallback in turn.
	writeTimeout := 15 * time.Second
	if t := cfg.AITimeout(); t > 0 {
		writeTimeout = 2*t + 10*time.Second
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var stopWorkers func()
	if workerPool != nil {
		stopWorkers = workerPool.Stop
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("✗ Failed to listen on %s: %v", server.Addr, err)
	}

	log.Printf("✓ WanderNest Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/ai", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/ai/ws", cfg.Port)

	if err := serve(server, ln, stop, 30*time.Second, wsHub.Close, stopWorkers); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Shutdown complete")
}

// serve runs srv on ln until stop fires. It returns only after in-flight
// requests have drained and afterDrain has finished, so callers may release
// the resources those requests use.
func serve(srv *http.Server, ln net.Listener, stop <-chan os.Signal, drain time.Duration, beforeDrain, afterDrain func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stop

		log.Println("Shutting down...")
		if beforeDrain != nil {
			beforeDrain()
		}

		ctx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}

		if afterDrain != nil {
			afterDrain()
		}
	}()

	if err := srv.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

func logProviderEvent(_ context.Context, e *capitan.Event) {
	provider, _ := services.ProviderKey.From(e)
	switch e.Signal() {
	case services.ProviderCallFailed:
		kind, _ := services.ErrorKindKey.From(e)
		status, _ := services.HTTPStatusKey.From(e)
		ms, _ := services.DurationMsKey.From(e)
		log.Printf("[ai] %s failed: %s (status %d, %dms)", provider, kind, status, ms)
	case services.RelayFallback:
		from, _ := services.FallbackFromKey.From(e)
		log.Printf("[ai] falling back from %s to %s", from, provider)
	case services.RelayOffline:
		reason, _ := services.ReasonKey.From(e)
		log.Printf("[ai] offline reply: %s", reason)
	case services.ProviderCallCompleted:
		model, _ := services.ModelKey.From(e)
		ms, _ := services.DurationMsKey.From(e)
		log.Printf("[ai] %s (%s) replied in %dms", provider, model, ms)
	}
}
