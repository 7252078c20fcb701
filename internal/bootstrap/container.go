package bootstrap

import (
	"context"
	"log"

	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/internal/controller"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/internal/repository/implementation"
	"ai-chatbot-be/internal/repository/memory"
	"ai-chatbot-be/internal/service"
	"ai-chatbot-be/internal/websocket"
	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/llm/factory"
	"ai-chatbot-be/pkg/rag"
	"ai-chatbot-be/pkg/tools"

	pktNats "ai-chatbot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController      controller.IChatController
	KnowledgeController controller.IKnowledgeController
	HealthController    controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus (in-process, for the embedding pipeline)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	embeddingProvider := embedding.NewOllamaProvider(
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.EmbeddingModel,
	)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Repositories (a nil db means no DSN was configured)
	var knowledgeRepo contract.KnowledgeRepository
	if db != nil {
		knowledgeRepo = implementation.NewKnowledgeRepository(db)
	} else {
		knowledgeRepo = memory.NewKnowledgeMemoryRepository()
		log.Printf("[INFO] Knowledge store: MEMORY")
	}

	var chatMemory contract.ChatMemoryRepository
	if cfg.Database.HistoryDriver == "memory" || db == nil {
		chatMemory = memory.NewChatMemoryRepository()
		log.Printf("[INFO] Chat history driver: MEMORY")
	} else {
		chatMemory = implementation.NewChatMemoryRepository(db)
		log.Printf("[INFO] Chat history driver: DATABASE")
	}

	// 5. Infrastructure
	// NATS (optional, best-effort analytics events)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis (optional, cross-instance delta streaming)
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 6. Domain Services
	ragEngine := rag.NewEngine(knowledgeRepo, embeddingProvider, sysLogger, rag.Config{
		MinSimilarity: cfg.Chat.MinSimilarity,
		TopK:          cfg.Chat.TopK,
	})

	catalog := tools.NewCatalog(knowledgeRepo, ragEngine, sysLogger)
	registry := tools.NewRegistry(sysLogger)
	if err := catalog.RegisterAll(registry); err != nil {
		log.Fatalf("[FATAL] Failed to register tools: %v", err)
	}
	dispatcher := tools.NewManualDispatcher(catalog, sysLogger)

	publisherService := service.NewPublisherService(pubSub, cfg.Ai.EmbedTopic)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Ai.EmbedTopic,
		knowledgeRepo,
		embeddingProvider,
		sysLogger,
	)

	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	chatService := service.NewChatService(
		chatMemory,
		ragEngine,
		dispatcher,
		registry,
		llmProvider,
		sysLogger,
		cfg.Chat,
		wsHub,
		eventPublisher,
	)

	knowledgeService := service.NewKnowledgeService(knowledgeRepo, publisherService, eventPublisher, sysLogger)

	// 7. Controllers
	return &Container{
		ChatController:      controller.NewChatController(chatService, wsHub),
		KnowledgeController: controller.NewKnowledgeController(knowledgeService),
		HealthController:    controller.NewHealthController(cfg.Ai.OllamaBaseURL),

		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
		Logger:          sysLogger,
	}
}
