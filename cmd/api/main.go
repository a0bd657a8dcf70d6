package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ecomsync/feedsync/internal/application/schedule"
	appsync "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/bootstrap"
	"github.com/ecomsync/feedsync/internal/infrastructure/catalog"
	"github.com/ecomsync/feedsync/internal/infrastructure/credentials"
	"github.com/ecomsync/feedsync/internal/infrastructure/queue"
	"github.com/ecomsync/feedsync/internal/infrastructure/repository"
	"github.com/ecomsync/feedsync/internal/infrastructure/rowcache"
	"github.com/ecomsync/feedsync/internal/infrastructure/transport"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	catalogURL := os.Getenv("CATALOG_API_URL")
	if catalogURL == "" {
		log.Fatal("CATALOG_API_URL is required")
	}
	catalogToken := os.Getenv("CATALOG_API_TOKEN")

	port := getEnv("PORT", "8080")

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		log.Fatalf("failed to create pgx pool: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	feedRepo := repository.NewFeedRepository(db)
	jobRepo := repository.NewJobRepository(db)
	rowLogRepo := repository.NewRowLogRepository(pool, db)
	jobQueue := queue.New(rdb)

	client := catalog.NewClient(catalogURL, catalogToken,
		catalog.WithRateLimitDelay(time.Duration(parseIntEnv("CATALOG_RATE_LIMIT_MS", 500))*time.Millisecond),
		catalog.WithBatchSize(parseIntEnv("CATALOG_ATTRIBUTE_BATCH", 25)),
	)
	syncer := catalog.NewSyncer(client)

	runner := appsync.NewRunner(
		feedRepo,
		jobRepo,
		rowLogRepo,
		credentials.EnvStore{},
		transport.DefaultDialer{},
		func(ctx context.Context, shopID string) (appsync.RecordSyncer, error) { return syncer, nil },
		rowcache.New(pool),
		jobQueue,
		appsync.RunnerConfig{
			WorkDir:    getEnv("SYNC_WORK_DIR", os.TempDir()),
			JobTimeout: time.Duration(parseIntEnv("SYNC_JOB_TIMEOUT_MINUTES", 120)) * time.Minute,
		},
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	worker := appsync.NewWorker(jobQueue, runner, appsync.WorkerConfig{
		Workers: parseWorkerCount(),
	})
	worker.Start(workerCtx)

	trigger := appsync.NewTriggerSync(feedRepo, jobRepo, jobQueue)

	scheduler := schedule.NewScheduler(feedRepo, trigger)
	scheduler.Start(workerCtx, time.Minute)

	sweeper := appsync.NewSweeper(jobRepo, jobQueue,
		time.Duration(parseIntEnv("SYNC_STALE_MINUTES", 60))*time.Minute)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if err := sweeper.Sweep(workerCtx); err != nil {
					log.Printf("stale job sweep: %v", err)
				}
			}
		}
	}()

	server := bootstrap.NewHTTPServer(db, pool, trigger)

	go func() {
		if err := server.Start(":" + port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorkers()
	worker.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}

func parseWorkerCount() int {
	workers := parseIntEnv("SYNC_WORKERS", 5)
	if workers <= 0 {
		return 5
	}
	if workers > 20 {
		return 20
	}
	return workers
}

func parseIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
