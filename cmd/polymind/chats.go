package main

import (
	"context"
	"fmt"

	polymind "github.com/polymind-ai/polymind-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(chatsCmd)
	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsNewCmd)
	chatsCmd.AddCommand(chatsRmCmd)
	chatsCmd.AddCommand(chatsPinCmd)
	chatsCmd.AddCommand(chatsUnpinCmd)
	chatsCmd.AddCommand(chatsModelCmd)

	chatsListCmd.Flags().Bool("cached", false, "list from the local cache without contacting the backend")
	chatsNewCmd.Flags().String("model", "", "model for the new chat (defaults to default.model)")
	chatsNewCmd.Flags().String("title", "", "title for the new chat")
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage chat sessions",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		chats, _ := getStores(client)

		cachedOnly, _ := cmd.Flags().GetBool("cached")
		var sessions []polymind.Chat
		var err error
		if cachedOnly {
			sessions, err = chats.CachedChats()
		} else {
			sessions, err = chats.RefreshChats(context.Background())
		}
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No chats.")
			return nil
		}
		for _, chat := range sessions {
			pin := " "
			if chat.Pinned {
				pin = "*"
			}
			fmt.Printf("%s %-44s %-20s %s\n", pin, chat.ID, chat.Model, chat.Title)
		}
		return nil
	},
}

var chatsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = cfg.Default.Model
		}
		title, _ := cmd.Flags().GetString("title")

		client := getClient()
		chats, _ := getStores(client)

		chat, err := chats.CreateChat(context.Background(), cfg.Auth.UserID, title, model)
		if err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		fmt.Printf("Created chat %s (%s)\n", chat.ID, chat.Title)
		return nil
	},
}

var chatsRmCmd = &cobra.Command{
	Use:   "rm <chat-id>",
	Short: "Delete a chat session and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		chats, _ := getStores(client)

		if err := chats.DeleteChat(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete chat: %w", err)
		}
		fmt.Printf("Deleted chat %s\n", args[0])
		return nil
	},
}

var chatsPinCmd = &cobra.Command{
	Use:   "pin <chat-id>",
	Short: "Pin a chat session",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPin(args[0], true) },
}

var chatsUnpinCmd = &cobra.Command{
	Use:   "unpin <chat-id>",
	Short: "Unpin a chat session",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPin(args[0], false) },
}

func setPin(chatID string, pinned bool) error {
	client := getClient()
	chats, _ := getStores(client)

	if err := chats.ToggleChatPin(context.Background(), chatID, pinned); err != nil {
		return fmt.Errorf("failed to update pin: %w", err)
	}
	if pinned {
		fmt.Printf("Pinned chat %s\n", chatID)
	} else {
		fmt.Printf("Unpinned chat %s\n", chatID)
	}
	return nil
}

var chatsModelCmd = &cobra.Command{
	Use:   "model <chat-id> <model>",
	Short: "Switch the model of a chat session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		chats, _ := getStores(client)

		if err := chats.UpdateChatModel(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to update model: %w", err)
		}
		fmt.Printf("Chat %s now uses %s\n", args[0], args[1])
		return nil
	},
}
