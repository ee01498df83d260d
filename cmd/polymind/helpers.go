package main

import (
	"fmt"
	"os"
	"path/filepath"

	polymind "github.com/polymind-ai/polymind-go"
)

// getClient creates a Polymind client from the stored configuration.
func getClient() *polymind.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.InitData == "" && cfg.Auth.UserID == "" {
		fmt.Fprintln(os.Stderr, "No identity configured. Run 'polymind init <user-id>' first.")
		os.Exit(1)
	}

	opts := []polymind.ClientOption{
		polymind.WithIdentity(polymind.StaticIdentity{Token: cfg.Auth.InitData, User: cfg.Auth.UserID}),
		polymind.WithFallbackUserID(cfg.Auth.UserID),
	}
	if cfg.Default.BaseURL != "" {
		opts = append(opts, polymind.WithBaseURL(cfg.Default.BaseURL))
	}
	return polymind.NewClient(opts...)
}

// getStores creates the chat and message caches backed by ~/.polymind/cache.
func getStores(client *polymind.Client) (*polymind.ChatStore, *polymind.MessageStore) {
	store := getCacheStore()
	chats := polymind.NewChatStore(store, client, nil)
	messages := polymind.NewMessageStore(store, client, chats, nil)
	return chats, messages
}

func getCacheStore() polymind.Store {
	dir, err := configDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve cache directory: %v\n", err)
		os.Exit(1)
	}
	store, err := polymind.NewFileStore(filepath.Join(dir, "cache"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open cache: %v\n", err)
		os.Exit(1)
	}
	return store
}
