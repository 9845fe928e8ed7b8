package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/calebgmahala/SaltyBets/internal/bet"
	"github.com/calebgmahala/SaltyBets/internal/ledger"
	"github.com/calebgmahala/SaltyBets/internal/match"
	"github.com/calebgmahala/SaltyBets/internal/metrics"
	"github.com/calebgmahala/SaltyBets/internal/settle"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

func main() {
	// Optional .env for local development.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()
	var cleanup []func()

	// --- Durable store ---
	var st store.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Ephemeral betting ledger ---
	var l ledger.Ledger
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })

		rl, err := ledger.NewRedisLedger(ctx, rdb)
		if err != nil {
			slog.Error("redis ledger init failed", "err", err)
			os.Exit(1)
		}
		l = rl
		slog.Info("connected to Redis ledger")
	} else {
		slog.Warn("REDIS_URL not set, using in-memory ledger (open bets will not survive restarts)")
		l = ledger.NewMemoryLedger()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub and totals broadcasting ---
	wsHub := bet.NewWSHub()
	go wsHub.Run()

	throttle := bet.NewThrottle(bet.DefaultBroadcastWindow, l.SideTotals, wsHub.PublishTotals)
	defer throttle.Stop()

	// --- Services ---
	betSvc := bet.NewService(st, l, throttle)
	settleSvc := settle.NewService(st, l)

	feedURL := os.Getenv("SALTY_API_URL")
	if feedURL == "" {
		feedURL = "http://localhost:3000"
		slog.Warn("SALTY_API_URL not set, using default bout feed", "url", feedURL)
	}

	finalizeAfter := 10 * time.Minute
	if v := os.Getenv("MATCH_FINALIZE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MATCH_FINALIZE_AFTER", "err", err)
			os.Exit(1)
		}
		finalizeAfter = d
	}

	matchCtrl := match.NewController(st, match.NewHTTPSource(feedURL), settleSvc, finalizeAfter)
	defer matchCtrl.Stop()
	if err := matchCtrl.Bootstrap(ctx); err != nil {
		slog.Error("match controller bootstrap failed", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"saltybets"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live side totals.
		r.Get("/ws", wsHub.HandleWS)

		// Stake operations.
		r.Post("/bets", betSvc.HandlePlace)
		r.Delete("/bets", betSvc.HandleCancel)
		r.Get("/bets/totals", betSvc.HandleTotals)
		r.Get("/bets/me", betSvc.HandleMyBet)

		// Match lifecycle.
		r.Post("/matches", matchCtrl.HandleCreate)
		r.Post("/matches/{matchID}/end", matchCtrl.HandleEnd)
		r.Get("/matches/current", matchCtrl.HandleCurrent)

		// User records.
		r.Get("/users/{userID}", betSvc.HandleGetUser)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("saltybets listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down saltybets...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("saltybets stopped")
}
