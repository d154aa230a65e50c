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

	messageHandler "chatlink-backend/internal/handler/http/message"
	storageHandler "chatlink-backend/internal/handler/http/storage"
	wsHandler "chatlink-backend/internal/handler/ws"
	"chatlink-backend/internal/middleware"
	"chatlink-backend/internal/realtime"
	"chatlink-backend/internal/repository/cassandra"
	redisRepo "chatlink-backend/internal/repository/redis"
	chatService "chatlink-backend/internal/service/chat"
	storageService "chatlink-backend/internal/service/storage"
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

	// 3. Cassandra
	cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    []string{env.GetString("CASSANDRA_HOST", "localhost")},
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "chatlink_ks"),
		Username: env.GetStringFromFile("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	logger.Info("Connected to Cassandra")

	// 4. Redis
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

	// 5. MinIO
	storageSvc, err := storageService.NewService(&storageService.Config{
		Endpoint:   env.GetString("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:  env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:  env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
		BucketName: env.GetString("MINIO_BUCKET", "chatlink-attachments"),
		UseSSL:     env.GetBool("MINIO_USE_SSL", false),
	})
	if err != nil {
		logger.Fatal("Failed to connect to MinIO", zap.Error(err))
	}
	logger.Info("Connected to MinIO")

	// 6. Repositories and services
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB.Client)
	chatSvc := chatService.NewService(messageRepo)

	// 7. Metrics
	appMetrics := metrics.NewMetrics("chat-service")

	// 8. Realtime core
	registry := realtime.NewRegistry()
	presence := realtime.NewBroadcaster(registry, presenceRepo, logger.Log)
	relay := realtime.NewRelay(registry, chatSvc, chatSvc, appMetrics, logger.Log)
	calls := realtime.NewCallCoordinator(registry, appMetrics, logger.Log)
	hub := realtime.NewHub(registry, presence, relay, calls, logger.Log)
	go hub.Run()
	defer hub.Stop()

	// 9. Handlers
	maxConns := env.GetInt("MAX_CONNECTIONS", constants.DefaultMaxConnections)
	ws := wsHandler.NewHandler(hub, jwtManager, appMetrics, maxConns)
	messageHdlr := messageHandler.NewHandler(chatSvc)
	storageHdlr := storageHandler.NewHandler(storageSvc)

	// 10. Router
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.PrometheusMiddleware(appMetrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "chat-service",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	// Token is validated inside the upgrade handshake
	router.GET("/ws", ws.ServeWS)

	api := router.Group("/api/messages")
	api.Use(middleware.AuthMiddleware(jwtManager))
	{
		api.POST("/addmsg", messageHdlr.AddMessage)
		api.POST("/getmsg", messageHdlr.GetMessages)
		api.POST("/addreaction", messageHdlr.AddReaction)
		api.POST("/upload", storageHdlr.Upload)
	}

	// 11. Server with graceful shutdown
	port := env.GetString("PORT", "8082")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		logger.Info("Chat service starting",
			zap.String("port", port),
			zap.String("ws_endpoint", "/ws"))
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
