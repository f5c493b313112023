package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Chunk mirrors the API's chunk response.
type Chunk struct {
	ID          string `json:"id"`
	KnowledgeID string `json:"knowledge_id"`
	Order       int    `json:"order"`
	Content     string `json:"content"`
	IndexStatus string `json:"index_status"`
}

// SearchMatch mirrors the API's search match response.
type SearchMatch struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// ChunkCmd creates the chunk command group.
func ChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Manage knowledge chunks",
	}

	cmd.AddCommand(chunkAddCmd())
	cmd.AddCommand(chunkListCmd())
	cmd.AddCommand(chunkSearchCmd())

	return cmd
}

func chunkAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <agent-id> <knowledge-id> <content>",
		Short: "Add a chunk",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(
				"/agents/"+args[0]+"/knowledge/"+args[1]+"/chunks",
				map[string]string{"content": args[2]},
			)
			if err != nil {
				return err
			}

			var chunk Chunk
			if err := json.Unmarshal(resp.Data, &chunk); err != nil {
				return fmt.Errorf("failed to parse chunk: %w", err)
			}
			fmt.Printf("Added chunk %s at order %d (index %s)\n", chunk.ID, chunk.Order, chunk.IndexStatus)
			return nil
		},
	}
}

func chunkListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent-id> <knowledge-id>",
		Short: "List a knowledge source's chunks in order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/agents/" + args[0] + "/knowledge/" + args[1] + "/chunks")
			if err != nil {
				return err
			}

			var chunks []Chunk
			if err := json.Unmarshal(resp.Data, &chunks); err != nil {
				return fmt.Errorf("failed to parse chunks: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				output, _ := json.MarshalIndent(chunks, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(chunks) == 0 {
				fmt.Println("No chunks found.")
				return nil
			}
			for _, c := range chunks {
				fmt.Printf("%3d. [%s] %s\n", c.Order, c.IndexStatus, preview(c.Content, 80))
			}
			return nil
		},
	}
}

func chunkSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <agent-id> <knowledge-id> <query>",
		Short: "Search a knowledge source",
		Long:  "Searches one knowledge source with semantic similarity.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(
				"/agents/"+args[0]+"/knowledge/"+args[1]+"/chunks/search",
				map[string]any{"query": args[2], "top_k": topK},
			)
			if err != nil {
				return err
			}

			var matches []SearchMatch
			if err := json.Unmarshal(resp.Data, &matches); err != nil {
				return fmt.Errorf("failed to parse search results: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				output, _ := json.MarshalIndent(matches, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(matches) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			fmt.Printf("Found %d results:\n\n", len(matches))
			for i, m := range matches {
				fmt.Printf("%d. (%.3f) %s\n", i+1, m.Score, preview(m.Chunk.Content, 100))
				if i < len(matches)-1 {
					fmt.Println(strings.Repeat("-", 40))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 5, "Maximum number of results")

	return cmd
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
