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

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/storage"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
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
	logger.Info("Database connected")

	checks := map[string]api.Pinger{"postgres": db}

	// Redis only backs sign-in state and job locks, so the shop keeps selling without it
	var (
		loginStates api.LoginStateStore
		locker      worker.Locker
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable; sign-in disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		loginStates = redisClient
		locker = redisClient
		checks["redis"] = redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	var imageHost service.ImageHost
	if cfg.Storage.Configured() {
		host, err := storage.NewS3Host(context.Background(), cfg.Storage)
		if err != nil {
			logger.Warn("Image host unavailable", zap.Error(err))
		} else {
			imageHost = host
		}
	} else {
		logger.Info("Image host not configured; uploads disabled")
	}

	var provider auth.IdentityProvider
	if p, err := auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.OAuthRedirectURL); err != nil {
		logger.Warn("Google sign-in disabled", zap.Error(err))
	} else {
		provider = p
	}

	shipping := service.NewShippingResolver()
	links := service.NewContactLinkBuilder(cfg.Store.Name, cfg.Store.WhatsAppPhone, shipping)
	orderService := service.NewOrderService(db, shipping, links, eventPublisher)

	services := api.Services{
		Orders:   orderService,
		Catalog:  service.NewCatalogService(db),
		Brands:   service.NewBrandService(db),
		Tags:     service.NewTagService(db),
		Wishlist: service.NewWishlistService(db),
		Images:   service.NewImageService(db, imageHost, service.DefaultFetchTimeout),
		Users:    service.NewUserService(db),
		Shipping: shipping,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	historyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	historyWorker := worker.NewOrderHistoryWorker(historyConsumer, db)
	go func() {
		if err := historyWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Order history worker error", zap.Error(err))
		}
	}()

	scheduler := worker.NewScheduler(orderService, locker)
	if err := scheduler.Start(cfg.Observ.StatsSchedule); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, api.AuthSettings{
		Sessions:     auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL),
		Provider:     provider,
		States:       loginStates,
		StateTTL:     cfg.Auth.LoginStateTTL,
		CookieSecure: cfg.Auth.CookieSecure,
	}, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	workerCancel()
	if err := historyWorker.Stop(); err != nil {
		logger.Warn("Error stopping order history worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
