package main

import (
	"context"
	"fmt"

	polymind "github.com/polymind-ai/polymind-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		catalog := polymind.NewModelCatalog(client, nil)

		accessible, locked, err := catalog.ModelsWithAccess(context.Background())
		if err != nil {
			return fmt.Errorf("failed to fetch models: %w", err)
		}

		for _, m := range accessible {
			fmt.Printf("  %-32s %s\n", m.ID, m.Name)
		}
		if len(locked) > 0 {
			fmt.Println("Requires upgrade:")
			for _, m := range locked {
				fmt.Printf("  %-32s %s\n", m.ID, m.Name)
			}
		}
		return nil
	},
}
