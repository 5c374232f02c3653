package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// RootCmd ragctl 根命令
func RootCmd() *cobra.Command {
	var (
		server string
		userID string
		admin  bool
	)
	client := &Client{}

	rootCmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Command line client for the conversational RAG service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			*client = *NewClient(server, userID, admin)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&server, "server", envOr("RAG_SERVER", "http://localhost:8080"), "service base URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", os.Getenv("RAG_USER"), "user id sent as the X-User-Id header")
	rootCmd.PersistentFlags().BoolVar(&admin, "admin", false, "send requests as an administrator")

	rootCmd.AddCommand(
		resourceCmd(client, "workspaces", "Manage workspaces"),
		resourceCmd(client, "workflows", "Manage workflows"),
		chatsCmd(client),
		askCmd(client),
		inventoryCmd(client),
	)
	return rootCmd
}

// resourceCmd 通用的 list/get/delete 子命令
func resourceCmd(client *Client, resource, short string) *cobra.Command {
	cmd := &cobra.Command{Use: resource, Short: short}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List " + resource,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, client, http.MethodGet, "/api/"+resource, nil)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one of the " + resource,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, client, http.MethodGet, "/api/"+resource+"/"+url.PathEscape(args[0]), nil)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one of the " + resource,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, client, http.MethodDelete, "/api/"+resource+"/"+url.PathEscape(args[0]), nil)
			},
		},
	)
	return cmd
}

func chatsCmd(client *Client) *cobra.Command {
	var (
		title     string
		workspace bool
		limit     int
	)
	cmd := &cobra.Command{Use: "chats", Short: "Manage chats"}

	create := &cobra.Command{
		Use:   "create <workflow-id>",
		Short: "Create a chat bound to a workflow, or to a single workspace with --workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetType := "WORKFLOW"
			if workspace {
				targetType = "WORKSPACE"
			}
			return request(cmd, client, http.MethodPost, "/api/chats", map[string]any{
				"title":         title,
				"workflow_id":   args[0],
				"workflow_type": targetType,
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "chat title")
	create.Flags().BoolVar(&workspace, "workspace", false, "bind the chat to a single workspace")

	messages := &cobra.Command{
		Use:   "messages <chat-id>",
		Short: "List chat messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/chats/" + url.PathEscape(args[0]) + "/messages"
			if limit > 0 {
				path += fmt.Sprintf("?limit=%d", limit)
			}
			return request(cmd, client, http.MethodGet, path, nil)
		},
	}
	messages.Flags().IntVar(&limit, "limit", 0, "only show the latest N messages")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "list",
			Short: "List your chats",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, client, http.MethodGet, "/api/chats", nil)
			},
		},
		&cobra.Command{
			Use:   "delete <chat-id>",
			Short: "Delete a chat and its messages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, client, http.MethodDelete, "/api/chats/"+url.PathEscape(args[0]), nil)
			},
		},
		messages,
	)
	return cmd
}

func askCmd(client *Client) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "ask <chat-id> <question...>",
		Short: "Ask a question in a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/chats/" + url.PathEscape(args[0]) + "/messages"
			body := map[string]any{"question": strings.Join(args[1:], " ")}
			data, err := client.Do(cmd.Context(), http.MethodPost, path, body)
			if err != nil {
				return err
			}
			if raw {
				return printJSON(cmd.OutOrStdout(), data)
			}

			var resp struct {
				Answer struct {
					Text string `json:"text"`
				} `json:"answer"`
				Sources []struct {
					Metadata map[string]any `json:"metadata"`
				} `json:"sources"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer.Text)
			for i, s := range resp.Sources {
				fmt.Fprintf(out, "[%d] %v\n", i+1, sourceLabel(s.Metadata))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "json", false, "print the full JSON response")
	return cmd
}

func inventoryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Show the configured model inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, client, http.MethodGet, "/api/llm/inventory", nil)
		},
	}
}

func request(cmd *cobra.Command, client *Client, method, path string, body any) error {
	data, err := client.Do(cmd.Context(), method, path, body)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), data)
}

func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func sourceLabel(metadata map[string]any) any {
	for _, key := range []string{"source", "title", "url"} {
		if v, ok := metadata[key]; ok {
			return v
		}
	}
	return metadata
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
