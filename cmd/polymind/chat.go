package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	polymind "github.com/polymind-ai/polymind-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)

	chatCmd.Flags().String("chat", "", "chat id to continue (defaults to the per-model chat)")
	chatCmd.Flags().String("model", "", "model to use (defaults to default.model)")
	chatCmd.Flags().Bool("no-context", false, "send the message without prior conversation context")
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message and stream the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = cfg.Default.Model
		}
		chatID, _ := cmd.Flags().GetString("chat")
		if chatID == "" && cfg.Auth.UserID != "" && model != "" {
			chatID = polymind.CompositeChatID(cfg.Auth.UserID, model)
		}
		noContext, _ := cmd.Flags().GetBool("no-context")

		client := getClient()
		_, messages := getStores(client)

		opts := &polymind.StreamChatOptions{
			Message: args[0],
			Model:   model,
			ChatID:  chatID,
		}
		if noContext {
			f := false
			opts.IncludeContext = &f
		}

		stream, err := client.StreamChat(context.Background(), opts)
		if err != nil {
			return fmt.Errorf("failed to start stream: %w", err)
		}
		defer stream.Close()

		var reply string
		for {
			ev, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("stream failed: %w", err)
			}
			switch ev.Type {
			case polymind.EventContent:
				reply += ev.Content
				fmt.Print(ev.Content)
			case polymind.EventError:
				fmt.Println()
				return fmt.Errorf("backend error: %s", ev.Error)
			}
		}
		fmt.Println()

		// Record both sides locally so history works offline.
		if chatID != "" {
			now := time.Now().UTC().Format(time.RFC3339)
			if err := messages.AddMessage(chatID, polymind.Message{Role: "user", Content: args[0], CreatedAt: now}); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to cache message: %v\n", err)
			}
			if err := messages.AddMessage(chatID, polymind.Message{Role: "assistant", Content: reply, CreatedAt: now}); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to cache reply: %v\n", err)
			}
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <chat-id>",
	Short: "Show the message history of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		_, messages := getStores(client)

		msgs, err := messages.Messages(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, msg := range msgs {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
		return nil
	},
}
