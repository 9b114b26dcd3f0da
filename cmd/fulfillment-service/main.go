package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/commercekit/fulfillment-engine/internal/cache"
	"github.com/commercekit/fulfillment-engine/internal/config"
	"github.com/commercekit/fulfillment-engine/internal/discovery"
	"github.com/commercekit/fulfillment-engine/internal/fulfillment"
	"github.com/commercekit/fulfillment-engine/internal/handlers"
	"github.com/commercekit/fulfillment-engine/internal/messaging"
	"github.com/commercekit/fulfillment-engine/internal/repository"
	"github.com/commercekit/fulfillment-engine/internal/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Initialize OpenTelemetry
	tp, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	mp, err := telemetry.InitMetrics(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down meter: %v", err)
		}
	}()

	// Initialize database
	dbPool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbPool.Close()

	// Catalog reads go through Redis; everything else hits Postgres directly.
	reader, err := cache.NewCachedReader(repository.NewPostgresReader(dbPool), cfg.RedisAddr, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("Failed to initialize catalog cache: %v", err)
	}
	defer reader.Close()

	// Order lifecycle events are best-effort; the engine works without them.
	var events fulfillment.EventPublisher
	mq, err := messaging.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("⚠️ RabbitMQ unavailable, order events disabled: %v", err)
	} else {
		defer mq.Close()
		events, err = messaging.NewOrderPublisher(mq)
		if err != nil {
			log.Fatalf("Failed to declare event queues: %v", err)
		}
	}

	service := fulfillment.NewService(
		repository.NewPostgresStore(dbPool),
		reader,
		events,
		tp.Tracer(cfg.ServiceName),
	)
	handler := handlers.NewHandler(service)

	if cfg.ConsulEnabled {
		consul, err := discovery.NewConsulClient(cfg.ConsulAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Consul: %v", err)
		}
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			log.Fatalf("Invalid port %q: %v", cfg.Port, err)
		}
		serviceID := cfg.ServiceName + "-" + uuid.New().String()[:8]
		if err := consul.Register(cfg.ServiceName, serviceID, port); err != nil {
			log.Fatalf("Failed to register with Consul: %v", err)
		}
		defer consul.Deregister(serviceID)
	}

	// Setup Gin router
	r := gin.Default()
	r.Use(otelgin.Middleware(cfg.ServiceName))
	handler.Routes(r)

	log.Printf("🚀 Fulfillment Service listening on port %s", cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
