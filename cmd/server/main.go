package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ikkim/shopcore-backend/config"
	"github.com/ikkim/shopcore-backend/internal/app/controller"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/db"
	"github.com/ikkim/shopcore-backend/internal/events"
	"github.com/ikkim/shopcore-backend/internal/middleware"
	"github.com/ikkim/shopcore-backend/internal/router"
	"github.com/ikkim/shopcore-backend/internal/scheduler"
	"github.com/ikkim/shopcore-backend/internal/storage"
	"github.com/ikkim/shopcore-backend/internal/websocket"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/ikkim/shopcore-backend/pkg/mailer"
	redisClient "github.com/ikkim/shopcore-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := cfg.Log.Level
	if logLevel == "" {
		logLevel = "info"
		if cfg.Server.Environment == "development" {
			logLevel = "debug"
		}
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	logger.Info("Starting shopcore backend server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	conn, err := db.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(conn); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := db.Seed(conn, cfg.Admin); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event fan-out
	hub := websocket.NewHub()
	go hub.Run(ctx)
	dispatcher := events.NewDispatcher(hub)

	var checkoutOpts []service.CheckoutOption
	if cfg.Redis.Enabled() {
		client, err := redisClient.Connect(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without pub/sub and idempotency keys", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer client.Close()
			dispatcher.Subscribe(events.NewRedisSubscriber(client, cfg.Redis.Channel))
			checkoutOpts = append(checkoutOpts,
				service.WithIdempotencyStore(redisClient.NewIdempotencyStore(client), cfg.Checkout.IdempotencyTTL),
			)
		}
	}
	if cfg.Mail.Enabled() {
		dispatcher.Subscribe(events.NewMailSubscriber(mailer.NewSMTPSender(cfg.Mail)))
	}

	var archive service.ArchiveStorage
	if cfg.S3.Enabled() {
		archive = storage.NewS3Storage(cfg.S3)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(conn)
	productRepo := repository.NewProductRepository(conn)
	inventoryRepo := repository.NewInventoryRepository(conn)
	cartRepo := repository.NewCartRepository(conn)
	addressRepo := repository.NewAddressRepository(conn)
	orderRepo := repository.NewOrderRepository(conn)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
		cfg.Cart.GuestTTL,
	)
	productService := service.NewProductService(productRepo)
	inventoryService := service.NewInventoryService(conn, inventoryRepo)
	cartService := service.NewCartService(cartRepo, inventoryRepo, cfg.Cart.GuestTTL)
	addressService := service.NewAddressService(conn, addressRepo, userRepo)
	checkoutService := service.NewCheckoutService(
		conn, orderRepo, cartRepo, inventoryRepo, addressRepo, userRepo, dispatcher, checkoutOpts...,
	)
	orderService := service.NewOrderService(conn, orderRepo, inventoryRepo, dispatcher)
	exportService := service.NewExportService(orderRepo, archive, cfg.S3.ExportPrefix)

	// Guest cart expiry
	sweeper := scheduler.NewCartSweeper(cartService, cfg.Cart.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start cart sweeper", err)
	}
	defer sweeper.Stop()

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	productController := controller.NewProductController(productService, inventoryService)
	cartController := controller.NewCartController(cartService)
	addressController := controller.NewAddressController(addressService)
	orderController := controller.NewOrderController(checkoutService, orderService, exportService)
	wsController := controller.NewWSController(hub, cfg.CORS.AllowedOrigins)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authController,
		productController,
		cartController,
		addressController,
		orderController,
		wsController,
		authMiddleware,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
