package http

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"internationally/internal/advisor"
	appsvc "internationally/internal/app"
	"internationally/internal/bootstrap"
	"internationally/internal/cache"
	"internationally/internal/chunker"
	"internationally/internal/housing"
	"internationally/internal/ingest"
	"internationally/internal/intent"
	"internationally/internal/places"
	"internationally/internal/platform/rabbitmq"
	"internationally/internal/rag"
	"internationally/internal/repository"
	"internationally/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	sourceRepo := repository.NewSourceRepository(app.MySQL)

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)

	classifier := intent.NewClassifier(app.AI, app.Config.LLM.ClassifierModel)
	retriever := rag.NewRetriever(app.AI, app.Index, log.Default())
	housingClient := housing.NewClient(app.Config.Housing)
	placesClient := places.NewClient(app.Config.Places)

	engine := advisor.New(
		classifier,
		retriever,
		housingClient,
		placesClient,
		app.AI,
		advisor.Options{
			ChatModel:       app.Config.LLM.ChatModel,
			BranchTimeout:   time.Duration(app.Config.Advisor.BranchTimeoutSeconds) * time.Second,
			DefaultLocation: app.Config.Advisor.DefaultLocation,
			CampusLocation:  app.Config.Advisor.CampusLocation,
			TopK:            app.Config.Index.TopK,
		},
		log.Default(),
	)

	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		publisher,
		historyCache,
		engine,
		app.Config.LLM.MaxContextMessage,
	)
	chatHandler := handler.NewChatHandler(chatService)

	pipeline := ingest.NewPipeline(
		ingest.NewFetcher(),
		chunker.New(app.Config.Index.ChunkWords, app.Config.Index.OverlapWords),
		app.AI,
		app.Index,
		sourceRepo,
		log.Default(),
	)
	kbHandler := handler.NewKnowledgeHandler(pipeline, sourceRepo)

	v1 := router.Group("/api/v1")

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	kbGroup := v1.Group("/kb")
	kbGroup.GET("/sources", kbHandler.ListSources)
	kbGroup.POST("/sources", kbHandler.IngestURL)

	return router
}
