package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tilsley/prstage/apps/prstage/internal/treefs"
)

func newWalkCmd(o *rootOptions) *cobra.Command {
	var (
		bottomUp bool
		exclude  []string
	)

	cmd := &cobra.Command{
		Use:   "walk [top]",
		Short: "Walk the repository tree at the configured branch",
		Long: `Walk the repository tree below top (default: the repository root) and
print one line per directory: "path: dirs=[...] files=[...]".

Examples:
  prstage walk easybuild/easyconfigs/g
  prstage walk --exclude __archive__ easybuild/easyconfigs
  prstage walk --bottom-up easybuild/easyconfigs/z`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bottomUp && len(exclude) > 0 {
				return errors.New("--exclude can only prune a top-down walk")
			}
			top := ""
			if len(args) == 1 {
				top = args[0]
			}

			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			c := treefs.NewClient(s.gh, s.ref(), s.cfg.GitHub.RawURL, s.fs, s.log)
			out := cmd.OutOrStdout()
			for entry, err := range c.Walk(cmd.Context(), top, !bottomUp) {
				if err != nil {
					return err
				}
				if len(exclude) > 0 {
					entry.Dirs = slices.DeleteFunc(entry.Dirs, func(d string) bool {
						return slices.Contains(exclude, d)
					})
				}
				fmt.Fprintf(out, "%s: dirs=%v files=%v\n", displayPath(entry.Path), entry.Dirs, entry.Files)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&bottomUp, "bottom-up", false, "yield directories after their subdirectories")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "directory names to skip (top-down only)")
	return cmd
}

func newReadCmd(o *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Print a file from the repository tree",
		Long: `Print the content of a file at the configured branch.

With --raw the file is downloaded from the raw content host into a temp
file instead, and the temp file's path is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			c := treefs.NewClient(s.gh, s.ref(), s.cfg.GitHub.RawURL, s.fs, s.log)
			if raw {
				name, err := c.DownloadFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			}

			data, err := c.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "download through the raw content host and print the temp file path")
	return cmd
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
