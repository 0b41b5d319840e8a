package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/inquiry-dispatch/internal/config"
	"github.com/shaharia-lab/inquiry-dispatch/internal/service"
)

func newSendCmd() *cobra.Command {
	var in service.Inquiry

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an inquiry notification from the command line",
		Long:  "Send one inquiry through the configured channels. Useful to check delivery end to end.",
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

			receipt, err := a.inquirySvc.Submit(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("sending inquiry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent via %s (message id %s, inquiry %s)\n",
				receipt.Channel, receipt.MessageID, receipt.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Sender name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Sender email address")
	cmd.Flags().StringVar(&in.Subject, "subject", "", "Subject line (optional)")
	cmd.Flags().StringVar(&in.Message, "message", "", "Inquiry text")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
