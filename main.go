package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"conversation-service/internal/access"
	"conversation-service/internal/auth"
	"conversation-service/internal/config"
	"conversation-service/internal/db"
	"conversation-service/internal/handlers"
	"conversation-service/internal/middleware"
	"conversation-service/internal/notify"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/service"
	"conversation-service/internal/unread"
	"conversation-service/internal/userdir"
	"conversation-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Schema migrations run before any route is registered; the process
	// only starts serving once schema invariants hold.
	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), "conversation-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	notifier := notify.NewNotifier(publisher, "conversation-service", cfg.Env)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	directory := userdir.NewClient(cfg.UserServiceURL)

	conversationRepo := repositories.NewConversationRepo(database)
	memberRepo := repositories.NewMemberRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	guard := access.NewGuard(conversationRepo, memberRepo)
	tracker := unread.NewTracker(messageRepo)

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	svc := service.NewConversationService(
		conversationRepo, memberRepo, messageRepo,
		guard, tracker, directory, hub, notifier, cfg.PageSize,
	)

	conversationHandler := handlers.NewConversationHandler(svc)
	groupHandler := handlers.NewGroupHandler(svc, directory)
	subscriptions := ws.NewSubscriptionHandler(hub, guard, verifier)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(otelgin.Middleware("conversation-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.POST("/conversations", authMiddleware, conversationHandler.Start)
	router.GET("/conversations/:id", authMiddleware, conversationHandler.History)
	router.POST("/conversations/:id/read", authMiddleware, conversationHandler.MarkRead)
	router.POST("/messages", authMiddleware, conversationHandler.Send)
	router.DELETE("/messages/:id", authMiddleware, conversationHandler.DeleteMessage)

	router.POST("/groups", authMiddleware, groupHandler.Create)
	router.GET("/groups/:id/members", authMiddleware, groupHandler.Members)
	router.POST("/groups/:id/members", authMiddleware, groupHandler.AddMembers)
	router.DELETE("/groups/:id/members/:memberId", authMiddleware, groupHandler.RemoveMember)

	router.GET("/ws", subscriptions.HandleGlobal)
	router.GET("/ws/conversations/:id", subscriptions.HandleConversation)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
