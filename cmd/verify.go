package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/inquiry-dispatch/internal/config"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the SMTP relay connection and credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			channel, err := a.inquirySvc.VerifySMTP(cmd.Context())
			if err != nil {
				return fmt.Errorf("smtp verification failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "smtp ok via %s\n", channel)
			return nil
		},
	}
}
