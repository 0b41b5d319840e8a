package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/inquiry-dispatch/internal/config"
)

func newLogCmd() *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent notification deliveries",
		Long:  "Print the most recent delivery log entries, including provider errors, from the local database.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("unsupported output format %q (want json or yaml)", output)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.inquirySvc.ListDeliveries(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing deliveries: %w", err)
			}

			if output == "yaml" {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				enc.SetIndent(2)
				return enc.Encode(entries)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}
