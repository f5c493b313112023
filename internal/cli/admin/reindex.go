package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentkb/agentkb/internal/config"
	"github.com/agentkb/agentkb/internal/jobs"
	"github.com/agentkb/agentkb/internal/provider"
	"github.com/agentkb/agentkb/internal/repository"
	"github.com/agentkb/agentkb/internal/service"
	"github.com/agentkb/agentkb/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func ReindexCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Reconcile pending chunks into the vector index",
		Long:  "Run a single reconciliation pass over chunks whose vector index write previously failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runReindex(outputFormat, batchSize)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "n", jobs.DefaultReindexBatchSize, "Maximum number of pending chunks to examine")

	return cmd
}

func runReindex(outputFormat string, batchSize int) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	agentRepo := repository.NewAgentRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	index := vectorindex.NewPgVectorIndex(pool)
	clientCache := provider.NewClientCache(agentRepo)
	chunkSvc := service.NewChunkService(knowledgeRepo, chunkRepo, index, clientCache, txRunner)

	examined, indexed, err := chunkSvc.ReindexPending(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to reindex pending chunks: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"examined": examined,
			"indexed":  indexed,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Examined %d pending chunks, indexed %d\n", examined, indexed)
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
