package bootstrap

import (
	"log"
	"os"
	"path/filepath"

	"doc-assembler-be/internal/config"
	"doc-assembler-be/internal/controller"
	"doc-assembler-be/internal/pkg/logger"
	"doc-assembler-be/internal/repository/memory"
	"doc-assembler-be/internal/service"
	"doc-assembler-be/pkg/dify"
	"doc-assembler-be/pkg/docevents"
	"doc-assembler-be/pkg/docx"
	"doc-assembler-be/pkg/opener"

	pktNats "doc-assembler-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	DocumentController   controller.IDocumentController
	GenerationController controller.IGenerationController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Logging
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	relayLogger := logger.NewIsolatedLogger(cfg.App.RelayLogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. External events (optional)
	var sink docevents.Sink
	var closers []func()
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			sink = natsPub
			closers = append(closers, natsPub.Close)
		}
	}
	documentEvents := docevents.NewPublisher(sink, sysLogger)

	// 4. Session storage
	outputDir := cfg.Document.OutputDir
	sessionRepo := memory.NewSessionRepository(
		cfg.Document.SessionTTL,
		memory.Naming{
			Prefix:    cfg.Document.FilenamePrefix,
			Extension: cfg.Document.Extension,
			Exists: func(filename string) bool {
				_, err := os.Stat(filepath.Join(outputDir, filename))
				return err == nil
			},
		},
		service.OnEvicted(sysLogger, documentEvents),
	)

	// 5. Services
	writer := docx.NewWriter(docx.Options{
		FontName:   cfg.Document.FontName,
		FontSizePt: cfg.Document.FontSizePt,
	})

	publisherService := service.NewPublisherService(cfg.Document.OpenTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Document.OpenTopic,
		opener.New(cfg.Document.OpenArtifacts),
		sysLogger,
	)

	assemblerService := service.NewAssemblerService(
		sessionRepo,
		writer,
		publisherService,
		documentEvents,
		sysLogger,
		service.AssemblerOptions{
			OutputDir:     outputDir,
			IngestTimeout: cfg.Document.IngestTimeout,
		},
	)

	difyClient := dify.NewClient(cfg.Upstream.WorkflowURL, cfg.Upstream.APIKey, cfg.Upstream.IdleTimeout)
	generationService := service.NewGenerationService(difyClient, sysLogger, relayLogger)

	closers = append(closers,
		func() { _ = pubSub.Close() },
		func() { _ = relayLogger.Sync() },
		func() { _ = sysLogger.Sync() },
	)

	// 6. Controllers
	return &Container{
		DocumentController:   controller.NewDocumentController(assemblerService),
		GenerationController: controller.NewGenerationController(generationService),

		ConsumerService: consumerService,
		Logger:          sysLogger,

		closers: closers,
	}
}

// Close releases the event bus, the NATS connection and flushes the loggers.
func (c *Container) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}
