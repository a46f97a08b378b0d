package cli

import (
	"errors"
	"fmt"

	"github.com/atinyakov/SealKeeper/internal/client"
	"github.com/spf13/cobra"
)

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Print the stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			data, err := c.Read(cmd.Context())
			if errors.Is(err, client.ErrRecoverable) {
				return fmt.Errorf("%w (run `sealkeeper recover`)", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), data)
			return nil
		},
	}
}

// NewWriteCommand creates the write command.
func NewWriteCommand(rootOpts *RootOptions) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "write <data>",
		Short: "Store data sealed with a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secretFrom(cmd, secret)
			if err != nil {
				return err
			}
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			if err := c.Write(cmd.Context(), args[0], s); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Stored")
			return nil
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "secret used to seal the data (prompted when omitted)")
	return cmd
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the stored record against a secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secretFrom(cmd, secret)
			if err != nil {
				return err
			}
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			msg, err := c.Verify(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "secret to verify (prompted when omitted)")
	return cmd
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Restore the record from the server backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secretFrom(cmd, secret)
			if err != nil {
				return err
			}
			c, err := rootOpts.client()
			if err != nil {
				return err
			}
			res, err := c.Recover(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %s\n", res.Outcome, res.Data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "secret the record was sealed with (prompted when omitted)")
	return cmd
}
