package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var (
		conversationID string
		knowledgeID    string
	)

	cmd := &cobra.Command{
		Use:   "chat <agent-id> <message>",
		Short: "Chat with an agent",
		Long:  "Sends one message to an agent and streams the reply.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}
			return runChat(api, args[0], args[1], conversationID, knowledgeID)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue an existing conversation")
	cmd.Flags().StringVarP(&knowledgeID, "knowledge", "k", "", "Restrict retrieval to one knowledge source")

	return cmd
}

func runChat(api *APIClient, agentID, message, conversationID, knowledgeID string) error {
	body, err := json.Marshal(map[string]string{
		"message":         message,
		"conversation_id": conversationID,
		"knowledge_id":    knowledgeID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", api.baseURL+"/agents/"+agentID+"/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// Streaming responses outlive the default client timeout.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if _, err := parseResponse(resp); err != nil {
			return err
		}
		return fmt.Errorf("chat failed with status %d", resp.StatusCode)
	}

	return consumeEvents(resp)
}

// consumeEvents reads the SSE stream, printing content fragments as they
// arrive and reporting the conversation id at the end.
func consumeEvents(resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "message":
				var fragment struct {
					Content string `json:"content"`
				}
				if err := json.Unmarshal([]byte(data), &fragment); err == nil {
					fmt.Print(fragment.Content)
				}
			case "done":
				var done struct {
					ConversationID string `json:"conversation_id"`
				}
				fmt.Println()
				if err := json.Unmarshal([]byte(data), &done); err == nil {
					fmt.Printf("\n(conversation %s)\n", done.ConversationID)
				}
				return nil
			case "error":
				var failure struct {
					Error string `json:"error"`
				}
				fmt.Println()
				if err := json.Unmarshal([]byte(data), &failure); err == nil {
					return fmt.Errorf("stream failed: %s", failure.Error)
				}
				return fmt.Errorf("stream failed")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	fmt.Println()
	return nil
}
