package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tilsley/prstage/apps/prstage/internal/publish"
)

func newGistCmd(o *rootOptions) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "gist [file|-]",
		Short: "Publish text as a public gist",
		Long: `Publish the content of a file, or stdin, as a public single-file gist and
print its URL.

Examples:
  prstage gist build.log --name build.log --description "PR #1234 build log"
  make test 2>&1 | prstage gist -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, o.fs, args)
			if err != nil {
				return err
			}

			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			url, err := publish.NewGistPublisher(s.gh, s.log).CreateGist(cmd.Context(), text, name, description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "gist file name (default file1.txt)")
	cmd.Flags().StringVar(&description, "description", "", "gist description (default (none))")
	return cmd
}

func newCommentCmd(o *rootOptions) *cobra.Command {
	var targetRepo string

	cmd := &cobra.Command{
		Use:   "comment <issue> [file|-]",
		Short: "Post a comment on an issue or pull request",
		Long: `Post the content of a file, or stdin, as a comment on an issue or pull
request of the configured owner. The configured repository is used unless
--target-repo names another.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid issue number %q", args[0])
			}
			text, err := readInput(cmd, o.fs, args[1:])
			if err != nil {
				return err
			}

			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			poster := publish.NewCommentPoster(s.gh, s.cfg.GitHub.Owner, s.cfg.GitHub.Repo, s.log)
			return poster.PostComment(cmd.Context(), issue, text, targetRepo)
		},
	}

	cmd.Flags().StringVar(&targetRepo, "target-repo", "", "repository to comment in (default: --repo)")
	return cmd
}

// readInput returns the content of args[0], or stdin when it is absent or "-".
func readInput(cmd *cobra.Command, fs afero.Fs, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
	} else {
		data, err = afero.ReadFile(fs, args[0])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", args[0], err)
		}
	}
	if len(data) == 0 {
		return "", errors.New("no content to publish")
	}
	return string(data), nil
}
