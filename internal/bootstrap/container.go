package bootstrap

import (
	"context"
	"log"
	"time"

	"paperchat-be/internal/config"
	"paperchat-be/internal/controller"
	"paperchat-be/internal/pkg/logger"
	"paperchat-be/internal/repository/memory"
	"paperchat-be/internal/repository/unitofwork"
	"paperchat-be/internal/service"
	"paperchat-be/internal/websocket"
	"paperchat-be/pkg/embedding"
	embedJina "paperchat-be/pkg/embedding/jina"
	"paperchat-be/pkg/llm/factory"
	"paperchat-be/pkg/rag/response"
	"paperchat-be/pkg/rag/retriever"
	rerankJina "paperchat-be/pkg/rerank/jina"

	pktNats "paperchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbedModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = embedJina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewFailoverProvider(
		cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, cfg.Keys.HuggingFace,
		cfg.Ai.FallbackProvider, cfg.Ai.FallbackModel, cfg.Ai.OllamaBaseURL,
		log.Default(),
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s), fallback %s (%s)",
		cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.FallbackProvider, cfg.Ai.FallbackModel)

	reranker := rerankJina.NewJinaReranker(cfg.Keys.Jina, cfg.Ai.RerankerBaseURL)

	// 4. In-memory state
	sessionRepo := memory.NewSessionRepository()
	snapshotRepo := memory.NewSnapshotRepository()

	// 5. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS subscriber: %v", err)
	}

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
	}

	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 6. Services
	publisherService := service.NewPublisherService(cfg.App.TurnEventsTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.TurnEventsTopic,
		natsPub,
		sysLogger,
	)

	conversationService := service.NewConversationService(
		uowFactory,
		embeddingProvider,
		llmProvider,
		reranker,
		sessionRepo,
		snapshotRepo,
		publisherService,
		wsHub,
		sysLogger,
		retriever.Options{
			Limit:         cfg.Retrieval.TopK,
			Threshold:     cfg.Retrieval.SimilarityThreshold,
			RerankTopN:    cfg.Retrieval.RerankTopN,
			RerankTimeout: time.Duration(cfg.Retrieval.RerankTimeoutMs) * time.Millisecond,
		},
		response.Options{
			StallWindow:  time.Duration(cfg.Retrieval.StallWindowSec) * time.Second,
			TurnDeadline: time.Duration(cfg.Retrieval.TurnDeadlineSec) * time.Second,
		},
	)

	if natsSub != nil {
		eventListener := service.NewEventListenerService(natsSub, snapshotRepo, wsHub, sysLogger)
		if err := eventListener.Start(); err != nil {
			log.Printf("[WARN] Failed to start NATS event listener: %v", err)
		}
	}

	// 7. Controllers
	return &Container{
		ConversationController: controller.NewConversationController(conversationService, wsHub, wsLogger),
		ConsumerService:        consumerService,
		WebSocketHub:           wsHub,
	}
}
