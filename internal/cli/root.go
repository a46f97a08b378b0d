// Package cli implements the sealkeeper command line client.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/SealKeeper/internal/client"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL     string
	CAFile  string
	Timeout time.Duration
}

// NewRootCommand creates the root command for the sealkeeper CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sealkeeper",
		Short: "SealKeeper - tamper-evident single record storage",
		Long: `Store one record sealed with a secret, verify it, and recover it
from the server backup after a restart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.URL == "" {
				return errors.New("--url must not be empty")
			}
			if opts.Timeout <= 0 {
				return fmt.Errorf("invalid timeout %s: must be positive", opts.Timeout)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "http://localhost:8090", "server base URL")
	cmd.PersistentFlags().StringVar(&opts.CAFile, "ca", "", "CA certificate used to verify the server")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")

	// Add subcommands
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewWriteCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRecoverCommand(opts))

	return cmd
}

func (o *RootOptions) client() (*client.Client, error) {
	hc, err := client.NewHTTPClient(o.CAFile, o.Timeout)
	if err != nil {
		return nil, err
	}
	return client.New(o.URL, hc), nil
}

// secretFrom returns the --secret value or prompts for it on the command input.
func secretFrom(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return client.PromptSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
}
