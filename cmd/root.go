// Package cmd implements the inquiryd command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/inquiry-dispatch/internal/build"
)

const defaultEnvFile = ".env"

// NewRootCmd returns the inquiryd root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "inquiryd",
		Short: "Storefront inquiry notification service",
		Long: `inquiryd receives contact-form inquiries from the storefront and notifies
the shop owner by email, using the Brevo HTTP API first and SMTP as fallback.`,
		Version:      build.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "Environment file loaded before reading configuration")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newChannelsCmd())
	root.AddCommand(newLogCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
