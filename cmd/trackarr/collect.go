package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/spf13/cobra"
)

func newCollectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <url>",
		Short: "Scrape one tracker page and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			app, cleanup, err := initializeCollect(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			settings, err := app.DB.GetSettings()
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}

			result, err := app.Collector.Collect(cmd.Context(), args[0], settings)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
