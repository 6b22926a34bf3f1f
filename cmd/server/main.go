// Package main is the application entry point.
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

	"wattson/internal/config"
	"wattson/internal/handler"
	"wattson/internal/middleware"
	"wattson/internal/model"
	"wattson/internal/pipeline"
	"wattson/internal/rag"
	"wattson/internal/repository"
	"wattson/internal/service"
	"wattson/pkg/database"
	"wattson/pkg/embedding"
	"wattson/pkg/kafka"
	"wattson/pkg/llm"
	"wattson/pkg/log"
	"wattson/pkg/storage"
	"wattson/pkg/tika"
	"wattson/pkg/token"
)

func main() {
	// 1. Configuration
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	// 3. Databases and infrastructure clients
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.User{}, &model.ProfileEntry{}); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. Repositories
	userRepository := repository.NewUserRepository(database.DB)
	profileRepository := repository.NewProfileRepository(database.DB)
	conversationRepository := repository.NewConversationRepository(database.RDB)
	segmentRepository, err := repository.NewSegmentRepository(cfg.RAG.DataDir)
	if err != nil {
		log.Fatalf("opening segment index failed: %v", err)
	}
	documentRepository, err := repository.NewDocumentRepository(cfg.RAG.DataDir)
	if err != nil {
		log.Fatalf("opening document registry failed: %v", err)
	}

	// 5. Services (dependency injection)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepository, profileRepository, jwtManager)
	retrievalService := service.NewRetrievalService(embeddingClient, segmentRepository, documentRepository, rag.NewExactScanRanker(), cfg.RAG.DataDir)
	adviceService := service.NewAdviceService(retrievalService, userService, llmClient, conversationRepository)

	// 6. Ingestion pipeline. The single Kafka consumer is the only writer of
	// the segment index, so appends never interleave.
	ingestor := pipeline.NewIngestor(embeddingClient, segmentRepository, documentRepository, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	processor := pipeline.NewProcessor(tikaClient, ingestor, cfg.MinIO)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)

	// 7. Router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	userHandler := handler.NewUserHandler(userService)
	documentHandler := handler.NewDocumentHandler(documentRepository, cfg.MinIO)
	searchHandler := handler.NewSearchHandler(retrievalService, cfg.RAG.TopK)
	statusHandler := handler.NewStatusHandler(retrievalService, adviceService)
	chatHandler := handler.NewChatHandler(adviceService, userService, jwtManager, database.RDB, cfg.Cooldown.Seconds)

	r.GET("/", statusHandler.Alive)
	r.GET("/health/ai", statusHandler.HealthAI)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/profile", userHandler.GetProfile)
				authed.PUT("/profile", userHandler.SetProfile)
			}
		}

		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			documents.GET("", documentHandler.List)
			documents.POST("/upload", middleware.CoachOnly(), documentHandler.Upload)
			documents.POST("/url", middleware.CoachOnly(), documentHandler.UploadFromURL)
		}

		search := apiV1.Group("/search")
		search.Use(
			middleware.AuthMiddleware(jwtManager, userService),
			middleware.Cooldown(database.RDB, cfg.Cooldown.Seconds),
		)
		{
			search.GET("", searchHandler.Search)
		}

		status := apiV1.Group("/status")
		status.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			status.GET("", statusHandler.Status)
		}

		chatGroup := apiV1.Group("/chat")
		chatGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatGroup.GET("/websocket-token", chatHandler.GetWebsocketStopToken)
		}
	}
	r.GET("/chat/:token", chatHandler.Handle)

	// 8. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, closing server...")

	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped cleanly")
}
