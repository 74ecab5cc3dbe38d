package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/soulsync/match-engine/internal/answers"
	"github.com/soulsync/match-engine/internal/catalog"
	"github.com/soulsync/match-engine/internal/directory"
	"github.com/soulsync/match-engine/internal/ledger"
	"github.com/soulsync/match-engine/internal/messaging"
	"github.com/soulsync/match-engine/internal/metrics"
	"github.com/soulsync/match-engine/internal/ratelimit"
	"github.com/soulsync/match-engine/internal/recommend"
	"github.com/soulsync/match-engine/internal/scoring"
	"github.com/soulsync/match-engine/internal/selector"
	"github.com/soulsync/match-engine/internal/service"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Println("Starting SoulSync match engine...")

	databaseURL := envOr("DATABASE_URL", "postgres://localhost:5432/soulsync?sslmode=disable")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	natsURL := envOr("NATS_URL", "nats://localhost:4222")
	metricsAddr := envOr("METRICS_ADDR", ":9091")
	migrationsPath := envOr("MIGRATIONS_PATH", "file://migrations")
	commQuestionID := envOr("COMM_QUESTION_ID", "communication_1")

	// Schema migration.
	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		log.Fatalf("failed to init migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// PostgreSQL setup.
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("failed to open PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	cancel()

	// Redis setup (rate limiting).
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// NATS setup.
	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = natsURL
	natsConfig.Name = "soulsync-matchd"

	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Catalog snapshot with background refresh.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	catalogCache, err := catalog.NewCache(loadCtx, catalog.NewStore(db))
	loadCancel()
	if err != nil {
		log.Fatalf("failed to load question catalog: %v", err)
	}
	metrics.CatalogQuestions.Set(float64(catalogCache.Current().Len()))

	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	go catalogCache.StartReload(reloadCtx)

	// Stores and engine components.
	answerStore := answers.NewStore(db)
	userStore := directory.NewStore(db)
	ledgerStore := ledger.NewStore(db)

	scorer := &scoring.Scorer{CommQuestionID: commQuestionID, Bonuses: true}
	sel := selector.New(userStore, answerStore, ledgerStore, catalogCache, scorer)
	rec := recommend.New(answerStore, catalogCache)
	limiter := ratelimit.NewLimiter(rdb)

	svc := service.New(natsClient, limiter, sel, rec, scorer, userStore, answerStore, catalogCache)
	if err := svc.Start(); err != nil {
		log.Fatalf("failed to start engine service: %v", err)
	}

	// Metrics endpoint.
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		log.Printf("[metrics] listening on %s", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] server error: %v", err)
		}
	}()

	log.Printf("SoulSync match engine running")
	log.Printf("  database:     %s", databaseURL)
	log.Printf("  redis_addr:   %s", redisAddr)
	log.Printf("  nats_url:     %s", natsURL)
	log.Printf("  catalog_size: %d", catalogCache.Current().Len())

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	svc.Stop()
	reloadCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	metricsServer.Shutdown(shutdownCtx)
	shutdownCancel()

	natsClient.Close()
	rdb.Close()
}
