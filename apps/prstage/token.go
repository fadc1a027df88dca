package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilsley/prstage/apps/prstage/internal/credentials"
	"github.com/tilsley/prstage/pkg/logging"
)

func newTokenCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token [user]",
		Short: "Check that a GitHub token is stored for a user",
		Long: `Look up the GitHub token for user (default: github.user) in the configured
secret store and report the outcome. The token itself is never printed.

When no token is stored, the output explains how to install one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			user := cfg.GitHub.User
			if len(args) == 1 {
				user = args[0]
			}
			if user == "" {
				return errors.New("no user given (pass one or set github.user / GITHUB_USER)")
			}

			store, closeStore, err := credentials.Open(cfg.Secrets)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }() //nolint:errcheck // non-actionable on exit

			log := logging.New(o.stderr).With("command", cmd.Name())
			_, msg, err := credentials.NewProvider(store, log).ResolveToken(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
