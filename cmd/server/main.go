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

	"raffle-checkout/config"
	"raffle-checkout/internal/api"
	"raffle-checkout/internal/backend"
	"raffle-checkout/internal/broker"
	"raffle-checkout/internal/checkout"
	"raffle-checkout/internal/fallbackstore"
	"raffle-checkout/internal/store"
	"raffle-checkout/internal/util"
	"raffle-checkout/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service")

	tp, err := util.InitTracer("checkout-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	var handoff fallbackstore.Store
	redisStore, err := fallbackstore.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Checkout.FallbackTTL)
	if err != nil {
		// A missing Redis only costs cross-instance handoff; an
		// in-process store keeps a single instance fully functional.
		log.Printf("Redis unavailable, using in-memory handoff store: %v", err)
		handoff = fallbackstore.NewMemoryStore(cfg.Checkout.FallbackTTL)
	} else {
		defer redisStore.Close()
		handoff = redisStore
		log.Println("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.Offline)
	if cfg.Backend.Offline {
		log.Println("Backend client running in offline mode")
	}

	checkoutService := checkout.NewService(backendClient, handoff, db, eventPublisher, checkout.Options{
		MaxProofSizeBytes:     cfg.Checkout.MaxProofSizeBytes,
		MinObservationChars:   cfg.Checkout.MinObservationChars,
		ReservationTTLMinutes: cfg.Checkout.ReservationTTLMinutes,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment, cfg.Kafka.ConsumerGroup)
	reconciliationWorker := worker.NewReconciliationWorker(paymentConsumer, db)
	go func() {
		if err := reconciliationWorker.Start(workerCtx); err != nil {
			log.Printf("Reconciliation worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(checkoutService, backendClient)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	reconciliationWorker.Stop()

	log.Println("Server exited")
}
