package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/inquiry-dispatch/internal/notification"
	"github.com/shaharia-lab/inquiry-dispatch/internal/service"
)

func newChannelsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Show which notification channels are configured",
		Long:  "Print the resolved channel configuration. Secrets are never printed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := service.NewInquiryService(service.InquiryDeps{
				Config: notification.StaticConfig(notification.ResolveEnv(nil)),
			})
			summary := svc.Channels()

			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				enc.SetIndent(2)
				return enc.Encode(summary)
			default:
				return fmt.Errorf("unsupported output format %q (want json or yaml)", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}
