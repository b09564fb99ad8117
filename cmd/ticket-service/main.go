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
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"train-ticketing/internal/booking"
	"train-ticketing/internal/booking/api"
	"train-ticketing/internal/booking/client"
	bookingdb "train-ticketing/internal/booking/db"
	"train-ticketing/internal/booking/events"
	"train-ticketing/internal/booking/qr"
	"train-ticketing/internal/booking/reaper"
	"train-ticketing/internal/config"
	"train-ticketing/internal/database/migrations"
	"train-ticketing/internal/kafka"
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

	log.Info("APP", "Starting Ticket Service initialization")

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

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{kafka.TopicBookingEvents}); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	ticketStore := &bookingdb.DB{Bun: bunDB}
	inventoryClient := client.NewInventoryClient(
		cfg.Clients.InventoryURL, cfg.Clients.Timeout,
		cfg.Clients.RetryAttempts, cfg.Clients.RetryDelay, log)
	paymentClient := client.NewPaymentClient(cfg.Clients.PaymentURL, cfg.Clients.Timeout, log)
	publisher := events.NewPublisher(producer)

	svc := booking.NewService(ticketStore, inventoryClient, paymentClient, publisher,
		log, cfg.Booking.MaxRetries, cfg.Booking.RetryDelay)

	qrSecret := os.Getenv("QR_SECRET")
	if qrSecret == "" {
		qrSecret = "train-ticketing-boarding-pass"
		log.Warn("CONFIG", "QR_SECRET not set, using default secret")
	}
	handler := api.NewHandler(svc, qr.NewGenerator(qrSecret))

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	handler.Routes(r)
	log.Info("ROUTER", "Ticket routes registered under /api/tickets")

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	sweeper := reaper.New(ticketStore, inventoryClient, publisher, log,
		cfg.Reaper.PaymentWindow, cfg.Reaper.Interval)
	go sweeper.Start(reaperCtx)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Ticket Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopReaper()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Ticket Service shutdown complete")
	}
}
