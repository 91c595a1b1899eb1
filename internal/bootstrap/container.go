package bootstrap

import (
	"context"
	"log"
	"os"

	"kb-ingest-be/internal/config"
	"kb-ingest-be/internal/controller"
	"kb-ingest-be/internal/pkg/logger"
	"kb-ingest-be/internal/repository/unitofwork"
	"kb-ingest-be/internal/service"
	"kb-ingest-be/pkg/embedding"
	"kb-ingest-be/pkg/etl"
	"kb-ingest-be/pkg/extractor"
	"kb-ingest-be/pkg/loader"
	"kb-ingest-be/pkg/sink"
	"kb-ingest-be/pkg/splitter"
	"kb-ingest-be/pkg/wiki"

	pktNats "kb-ingest-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	IngestController controller.IIngestController
	SpaceController  controller.ISpaceController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	QueueService    service.IQueueService
	RefreshService  service.IRefreshService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker-unknown"
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
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

	// 3. ETL building blocks
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	wikiClient := wiki.NewClient(cfg.Ingest.WikiBaseURL, cfg.Keys.WikiToken)
	knowledgeLoader := loader.NewResolver(wikiClient)

	strategies := splitter.NewRegistry()

	geminiExtractor := extractor.NewGeminiExtractor(cfg.Keys.GoogleGemini, cfg.Ai.ExtractorModel)

	pipeline := etl.NewPipeline(
		knowledgeLoader,
		strategies,
		geminiExtractor,
		geminiExtractor,
		sysLogger,
	)

	vectorSink := sink.NewVectorSink(db, embeddingProvider)
	fullTextSink := sink.NewFullTextSink(rdb)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Ingest.SyncTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Ingest.SyncTopic,
		uowFactory,
		natsPub,
		sysLogger,
	)

	spaceService := service.NewSpaceService(uowFactory, vectorSink, fullTextSink, sysLogger)

	syncService := service.NewSyncService(
		uowFactory,
		pipeline,
		spaceService,
		publisherService,
		sysLogger,
		cfg.Ingest.MaxChunksOnce,
		cfg.Ingest.MaxThreads,
	)

	queueService := service.NewQueueService(uowFactory, syncService, natsPub, sysLogger, host)

	refreshService := service.NewRefreshService(
		uowFactory,
		syncService,
		wikiClient,
		natsPub,
		sysLogger,
		host,
		cfg.Ingest.RefreshHour,
	)

	// 5. Controllers
	return &Container{
		IngestController: controller.NewIngestController(syncService, queueService),
		SpaceController:  controller.NewSpaceController(spaceService, refreshService),

		ConsumerService: consumerService,
		QueueService:    queueService,
		RefreshService:  refreshService,

		Logger: sysLogger,
	}
}
