// Package admin implements the agentkbd daemon commands.
package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentkb/agentkb/internal/api/handlers"
	"github.com/agentkb/agentkb/internal/chunking"
	"github.com/agentkb/agentkb/internal/config"
	"github.com/agentkb/agentkb/internal/database"
	"github.com/agentkb/agentkb/internal/jobs"
	"github.com/agentkb/agentkb/internal/provider"
	"github.com/agentkb/agentkb/internal/repository"
	"github.com/agentkb/agentkb/internal/server"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/agentkb/agentkb/internal/storage"
	"github.com/agentkb/agentkb/internal/telemetry"
	"github.com/agentkb/agentkb/internal/tools"
	"github.com/agentkb/agentkb/internal/vectorindex"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the agentkb API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-reindex", false, "Disable the vector index reconciliation worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		sampleRate := cfg.SentrySampleRate
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	agentRepo := repository.NewAgentRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	index := vectorindex.NewPgVectorIndex(pool)
	clientCache := provider.NewClientCache(agentRepo)

	var archive service.DocumentArchive
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Client
	}

	splitter, err := chunking.NewSplitter(nil)
	if err != nil {
		return fmt.Errorf("failed to build splitter: %w", err)
	}

	agentSvc := service.NewAgentService(agentRepo, clientCache)
	chunkSvc := service.NewChunkService(knowledgeRepo, chunkRepo, index, clientCache, txRunner)
	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, chunkRepo, index)
	importSvc := service.NewImportService(knowledgeRepo, chunking.NewTextExtractor(), splitter, chunkSvc, archive)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, clientCache)

	registry := tools.NewRegistry()
	registry.Register(tools.NewSearchKnowledgeTool(searchAdapter(chunkSvc)))

	chatSvc := service.NewChatService(agentRepo, knowledgeRepo, conversationSvc, messageRepo, clientCache, chunkSvc, registry)

	var reindexWorker *jobs.Worker
	noReindex, _ := cmd.Flags().GetBool("no-reindex")
	if !noReindex {
		processor := jobs.NewReindexWorker(chunkSvc, cfg.ReindexBatchSize)
		reindexWorker = jobs.NewWorker(processor, cfg.ReindexInterval)
		go reindexWorker.Start(ctx)
		log.Println("reindex worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		AgentHandler:        handlers.NewAgentHandler(agentSvc),
		KnowledgeHandler:    handlers.NewKnowledgeHandler(knowledgeSvc, importSvc),
		ChunkHandler:        handlers.NewChunkHandler(chunkSvc),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		ChatHandler:         handlers.NewChatHandler(chatSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if reindexWorker != nil {
		reindexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// searchAdapter bridges the tool registry's search signature onto the chunk
// service without the tools package importing it.
func searchAdapter(chunkSvc *service.ChunkService) tools.SearchFunc {
	return func(ctx context.Context, agentID, knowledgeID, query string, topK int) ([]tools.SearchHit, error) {
		matches, err := chunkSvc.SearchSimilar(ctx, service.SearchInput{
			AgentID:     agentID,
			KnowledgeID: knowledgeID,
			Query:       query,
			TopK:        topK,
		})
		if err != nil {
			return nil, err
		}

		hits := make([]tools.SearchHit, 0, len(matches))
		for _, m := range matches {
			hits = append(hits, tools.SearchHit{
				ChunkID: m.Chunk.ID,
				Order:   m.Chunk.ChunkOrder,
				Content: m.Chunk.Content,
				Score:   m.Score,
			})
		}
		return hits, nil
	}
}
