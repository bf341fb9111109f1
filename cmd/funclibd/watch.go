package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/funclibd/internal/host"
	"github.com/fyrsmithlabs/funclibd/internal/vfs"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the project and watch it until interrupted",
		Long: `Open the project, keep its directory index current and print changes.
On SIGINT or SIGTERM the project is closed, which deletes its function
library.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(ctx context.Context, h *host.Host, root string) error {
				p, err := h.Projects.Open(ctx, "", root)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "watching %s (project %s)\n", p.Path, p.ID)

				if h.Config.Watch.Enabled {
					w, err := h.Watch(ctx, p, func(c vfs.Change) {
						for _, f := range c.Added {
							fmt.Fprintf(out, "+ %s\n", f)
						}
						for _, f := range c.Modified {
							fmt.Fprintf(out, "~ %s\n", f)
						}
						for _, f := range c.Removed {
							fmt.Fprintf(out, "- %s\n", f)
						}
					})
					if err != nil {
						return err
					}
					defer w.Stop()
				}

				<-ctx.Done()
				fmt.Fprintln(out, "closing project")
				return nil
			})
		},
	}
}
