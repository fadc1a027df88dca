package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilsley/prstage/apps/prstage/internal/prfetch"
)

func newFetchPRCmd(o *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "fetch-pr <pr>",
		Short: "Download the files changed by a pull request",
		Long: `Download every file changed by a pull request, at the PR's latest commit,
into a staging directory and print the staged paths, one per line.

The PR must be in the "clean" mergeable state. Files are staged under their
base names; the command fails if the staged set does not match the diff.

Examples:
  # Stage PR 1234 into a fresh temp dir
  prstage fetch-pr 1234

  # Stage into a given directory
  prstage fetch-pr 1234 --dir ./pr1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pr, err := prfetch.ParsePRNumber(args[0])
			if err != nil {
				return err
			}

			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			f := prfetch.New(s.gh, s.fs, prfetch.Options{
				Owner:       s.cfg.GitHub.Owner,
				Repo:        s.cfg.GitHub.Repo,
				RawBaseURL:  s.cfg.GitHub.RawURL,
				Concurrency: s.cfg.Fetch.Concurrency,
			}, s.log)

			paths, err := f.Fetch(cmd.Context(), pr, dir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "staging directory (default: a new temp dir)")
	return cmd
}
