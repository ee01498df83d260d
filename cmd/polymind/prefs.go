package main

import (
	"context"
	"encoding/json"
	"fmt"

	polymind "github.com/polymind-ai/polymind-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage user preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the user preference document",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		prefs, err := client.GetPreferences(context.Background())
		if err != nil {
			return fmt.Errorf("failed to fetch preferences: %w", err)
		}
		data, err := json.MarshalIndent(prefs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render preferences: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one preference field",
	Long:  "Set one preference field. The value is parsed as JSON when possible, otherwise stored as a string.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]

		client := getClient()
		ctx := context.Background()

		prefs, err := client.GetPreferences(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch preferences: %w", err)
		}
		if prefs == nil {
			prefs = polymind.Preferences{}
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		prefs[key] = value

		if err := client.UpdatePreferences(ctx, prefs); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		fmt.Printf("Set %s\n", key)
		return nil
	},
}
