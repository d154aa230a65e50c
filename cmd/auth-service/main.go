package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authHandler "chatlink-backend/internal/handler/http/auth"
	userHandler "chatlink-backend/internal/handler/http/user"
	"chatlink-backend/internal/middleware"
	"chatlink-backend/internal/repository/cockroach"
	redisRepo "chatlink-backend/internal/repository/redis"
	authService "chatlink-backend/internal/service/auth"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/database"
	"chatlink-backend/pkg/env"
	"chatlink-backend/pkg/jwt"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

func main() {
	// 1. Logging
	logger.InitDefault()
	defer logger.Sync()

	// 2. JWT Manager
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		logger.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewManager(jwtSecret, constants.AccessTokenExpiry, constants.RefreshTokenExpiry)

	// 3. CockroachDB
	cockroachDB, err := database.NewCockroachDB(context.Background(), &database.CockroachConfig{
		Host:     env.GetString("COCKROACH_HOST", "localhost"),
		Port:     env.GetInt("COCKROACH_PORT", 26257),
		User:     env.GetString("COCKROACH_USER", "root"),
		Password: env.GetStringFromFile("COCKROACH_PASSWORD", ""),
		Database: env.GetString("COCKROACH_DATABASE", "chatlink_db"),
		SSLMode:  env.GetString("COCKROACH_SSLMODE", "disable"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer cockroachDB.Close()
	logger.Info("Connected to CockroachDB")

	// 4. Redis, only for the presence mirror dropped on logout
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("Connected to Redis")

	// 5. Repositories and services
	userRepo := cockroach.NewUserRepository(cockroachDB.Pool)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB.Client)
	authSvc := authService.NewService(userRepo, presenceRepo, jwtManager)

	// 6. Metrics
	appMetrics := metrics.NewMetrics("auth-service")

	// 7. Handlers
	authHdlr := authHandler.NewHandler(authSvc)
	userHdlr := userHandler.NewHandler(authSvc)

	// 8. Router
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.PrometheusMiddleware(appMetrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "auth-service",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	api := router.Group("/api/auth")
	{
		api.POST("/register", authHdlr.Register)
		api.POST("/login", authHdlr.Login)
		api.POST("/refresh", authHdlr.RefreshToken)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(jwtManager))
		{
			authed.GET("/logout", authHdlr.Logout)
			authed.POST("/setavatar", userHdlr.SetAvatar)
			authed.GET("/allusers", userHdlr.ListContacts)
			authed.GET("/online/:id", userHdlr.Online)
			authed.GET("/avatar/:seed", userHdlr.Avatar)
		}
	}

	// 9. Server with graceful shutdown
	port := env.GetString("PORT", "8081")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		logger.Info("Auth service starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
