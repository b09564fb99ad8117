package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"train-ticketing/internal/config"
	"train-ticketing/internal/database/migrations"
	"train-ticketing/internal/inventory"
	"train-ticketing/internal/inventory/api"
	"train-ticketing/internal/inventory/cache"
	invdb "train-ticketing/internal/inventory/db"
	invredis "train-ticketing/internal/inventory/redis"
	"train-ticketing/internal/logger"
)

func connectPostgres(dsn string, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		sqldb = sql.OpenDB(connector)
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
		sqldb.Close()
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Inventory Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	bunDB := connectPostgres(cfg.Database.DSN, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.Options{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	svc := inventory.NewService(
		&invdb.DB{Bun: bunDB},
		invredis.NewMutex(redisClient, cfg.Locking.WaitTimeout, cfg.Locking.LeaseTTL),
		cache.NewSnapshotCache(redisClient, cfg.Cache.TTL),
		log,
	)
	handler := api.NewHandler(svc)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	handler.Routes(r)
	log.Info("ROUTER", "Inventory routes registered under /api/inventory")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Inventory Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Inventory Service shutdown complete")
	}
}
