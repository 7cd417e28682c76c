package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tjfontaine/promptgate/internal/config"
	"github.com/tjfontaine/promptgate/internal/runtime"
	"github.com/tjfontaine/promptgate/internal/stats"
)

// NewStatsCommand prints aggregate usage from the configured store.
func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-model usage, latency and rating aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := runtime.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list interactions: %w", err)
			}
			ratings, err := store.ListRatings(cmd.Context())
			if err != nil {
				return fmt.Errorf("list ratings: %w", err)
			}
			summary := stats.Compute(records, ratings)

			switch output {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			case "yaml":
				return yaml.NewEncoder(os.Stdout).Encode(summary)
			case "table":
				fmt.Fprintf(os.Stdout, "%-48s %8s %10s %8s\n", "MODEL", "PROMPTS", "LATENCY_S", "RATING")
				for _, m := range summary.Models() {
					fmt.Fprintf(os.Stdout, "%-48s %8d %10.3f %8.2f\n",
						m, summary.ModelUsage[m], summary.AvgLatency[m], summary.AvgRating[m])
				}
				fmt.Fprintf(os.Stdout, "total prompts: %d, fallbacks: %d\n", summary.TotalPrompts, summary.TotalFallbacks)
				return nil
			default:
				return fmt.Errorf("invalid output format: %s", output)
			}
		},
	}
	cmd.Flags().StringP("output", "o", "json", "Output format; available options are 'json', 'yaml' and 'table'")
	return cmd
}
