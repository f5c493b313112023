package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// KnowledgeSource mirrors the API's knowledge source response.
type KnowledgeSource struct {
	ID         string `json:"id"`
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	SourceURI  string `json:"source_uri,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ImportResult mirrors the API's import response.
type ImportResult struct {
	FileName      string `json:"file_name"`
	Profile       string `json:"profile"`
	Segments      int    `json:"segments"`
	Imported      int    `json:"imported"`
	IndexFailures int    `json:"index_failures"`
	ArchiveURI    string `json:"archive_uri,omitempty"`
}

// KnowledgeCmd creates the knowledge command group.
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage knowledge sources",
	}

	cmd.AddCommand(knowledgeListCmd())
	cmd.AddCommand(knowledgeCreateCmd())
	cmd.AddCommand(knowledgeDeleteCmd())
	cmd.AddCommand(knowledgeImportCmd())

	return cmd
}

func knowledgeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's knowledge sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/agents/" + args[0] + "/knowledge")
			if err != nil {
				return err
			}

			var sources []KnowledgeSource
			if err := json.Unmarshal(resp.Data, &sources); err != nil {
				return fmt.Errorf("failed to parse knowledge sources: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				output, _ := json.MarshalIndent(sources, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(sources) == 0 {
				fmt.Println("No knowledge sources found.")
				return nil
			}
			for _, s := range sources {
				fmt.Printf("%s  %s (%s)\n", s.ID, s.Name, s.SourceType)
			}
			return nil
		},
	}
}

func knowledgeCreateCmd() *cobra.Command {
	var sourceType string

	cmd := &cobra.Command{
		Use:   "create <agent-id> <name>",
		Short: "Create a knowledge source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/agents/"+args[0]+"/knowledge", map[string]string{
				"name":        args[1],
				"source_type": sourceType,
			})
			if err != nil {
				return err
			}

			var source KnowledgeSource
			if err := json.Unmarshal(resp.Data, &source); err != nil {
				return fmt.Errorf("failed to parse knowledge source: %w", err)
			}
			fmt.Printf("Created knowledge source %s\n", source.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "MANUAL", "Source type (FILE, URL, DATABASE, MANUAL)")

	return cmd
}

func knowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id> <knowledge-id>",
		Short: "Delete a knowledge source and its chunks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/agents/" + args[0] + "/knowledge/" + args[1]); err != nil {
				return err
			}
			fmt.Println("Knowledge source deleted.")
			return nil
		},
	}
}

func knowledgeImportCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "import <agent-id> <knowledge-id> <file>",
		Short: "Import a document into a knowledge source",
		Long:  "Uploads a document, splits it into chunks and embeds them.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.PostFile(
				"/agents/"+args[0]+"/knowledge/"+args[1]+"/import",
				args[2],
				map[string]string{"profile": profile},
			)
			if err != nil {
				return err
			}

			var result ImportResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse import result: %w", err)
			}

			fmt.Printf("Imported %d/%d chunks from %s (profile %s)\n",
				result.Imported, result.Segments, result.FileName, result.Profile)
			if result.IndexFailures > 0 {
				fmt.Printf("Warning: %d chunks are awaiting index reconciliation\n", result.IndexFailures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Override the detected splitting profile")

	return cmd
}
