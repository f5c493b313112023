package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Agent mirrors the API's agent response.
type Agent struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Provider           string  `json:"provider"`
	ChatModel          string  `json:"chat_model"`
	EmbeddingModel     string  `json:"embedding_model"`
	EmbeddingDimension int     `json:"embedding_dimension"`
	IsDefault          bool    `json:"is_default"`
	Temperature        float64 `json:"temperature"`
	CreatedAt          string  `json:"created_at"`
}

// AgentCmd creates the agent command group.
func AgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentGetCmd())
	cmd.AddCommand(agentDeleteCmd())

	return cmd
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/agents")
			if err != nil {
				return err
			}

			var agents []Agent
			if err := json.Unmarshal(resp.Data, &agents); err != nil {
				return fmt.Errorf("failed to parse agents: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				output, _ := json.MarshalIndent(agents, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(agents) == 0 {
				fmt.Println("No agents found.")
				return nil
			}
			for _, a := range agents {
				marker := " "
				if a.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %s  %s (%s/%s, dim %d)\n",
					marker, a.ID, a.Name, a.Provider, a.ChatModel, a.EmbeddingDimension)
			}
			return nil
		},
	}
}

func agentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <agent-id>",
		Short: "Show one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/agents/" + args[0])
			if err != nil {
				return err
			}

			var agent Agent
			if err := json.Unmarshal(resp.Data, &agent); err != nil {
				return fmt.Errorf("failed to parse agent: %w", err)
			}

			output, _ := json.MarshalIndent(agent, "", "  ")
			fmt.Println(string(output))
			return nil
		},
	}
}

func agentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/agents/" + args[0]); err != nil {
				return err
			}
			fmt.Println("Agent deleted.")
			return nil
		},
	}
}
