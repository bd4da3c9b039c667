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

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vendora/storefront-api/internal/config"
	"github.com/vendora/storefront-api/internal/handler"
	"github.com/vendora/storefront-api/internal/middleware"
	"github.com/vendora/storefront-api/internal/repository"
	"github.com/vendora/storefront-api/internal/service"
	"github.com/vendora/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	mongoClient, err := mongo.Connect(connectCtx, mongopts.Client().ApplyURI(cfg.Mongo.URI))
	connectCancel()
	if err != nil {
		log.Error("connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		log.Error("ping MongoDB", "error", err)
		os.Exit(1)
	}
	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		log.Error("ensure indexes", "error", err)
		os.Exit(1)
	}
	log.Info("connected to MongoDB")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	repairPublisher := worker.NewPublisher(amqpCh)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, redisClient)
	favoriteSvc := service.NewFavoriteService(favoriteRepo)
	addressSvc := service.NewAddressService(addressRepo, userRepo, repairPublisher, log)
	userSvc := service.NewUserService(userRepo, addressRepo, orderRepo)
	orderSvc := service.NewOrderService(orderRepo, addressRepo, userRepo, service.NewRedisIdempotencyStore(redisClient), repairPublisher, cfg.Pricing, log)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc, userSvc)
	favoriteH := handler.NewFavoriteHandler(favoriteSvc)
	userH := handler.NewUserHandler(userSvc, addressSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	healthH := handler.NewHealthHandler(mongoClient, redisClient, amqpConn)

	// Worker
	repairWorker := worker.NewRepairWorker(amqpCh, userRepo, redisClient, log)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)
		auth.POST("/become-vendor", middleware.AuthMiddleware(cfg.JWT.Secret), authH.BecomeVendor)

		products := api.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		vendor := products.Group("", middleware.AuthMiddleware(cfg.JWT.Secret))
		vendor.POST("", productH.Create)
		vendor.PUT("/:id", productH.Update)
		vendor.DELETE("/:id", productH.Delete)

		favorites := api.Group("/favorites", middleware.AuthMiddleware(cfg.JWT.Secret))
		favorites.GET("", favoriteH.List)
		favorites.POST("/toggle", favoriteH.Toggle)
		favorites.DELETE("", favoriteH.Clear)

		user := api.Group("/user", middleware.AuthMiddleware(cfg.JWT.Secret))
		user.GET("/profile", userH.Profile)
		user.PUT("/profile", userH.UpdateProfile)

		user.POST("/address", userH.CreateAddress)
		user.PUT("/address/:id", userH.UpdateAddress)
		user.DELETE("/address/:id", userH.DeleteAddress)

		user.POST("/order", orderH.Create)
		user.GET("/orders", orderH.List)
		user.GET("/order/:id", orderH.Get)
		user.PUT("/order/:id", orderH.UpdateStatus)
		user.PUT("/order/:id/cancel", orderH.Cancel)
		user.DELETE("/order/:id", orderH.Delete)
	}

	if err := repairWorker.Start(ctx); err != nil {
		log.Error("start repair worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	repairWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
