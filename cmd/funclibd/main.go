// Package main implements the funclibd CLI: a host for project function
// libraries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/funclibd/internal/config"
	"github.com/fyrsmithlabs/funclibd/internal/host"
	"github.com/fyrsmithlabs/funclibd/internal/project"
)

var (
	// Version information, set at build time.
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	configPath string
	projectDir string
	useGitRoot bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "funclibd",
		Short: "Manage per-project python function libraries",
		Long: `funclibd writes generated functions into a project's root, records each
in a manifest, and removes them again when the project closes.

Configuration is read from ~/.config/funclibd/config.yaml and FUNCLIBD_*
environment variables; a .env file in the working directory is loaded first.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/funclibd/config.yaml)")
	root.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "project directory")
	root.PersistentFlags().BoolVar(&useGitRoot, "git-root", false, "use the root of the git worktree enclosing --project")

	root.AddCommand(
		newWriteCmd(),
		newCleanCmd(),
		newListCmd(),
		newRunConfigCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// withHost loads configuration, builds a host, runs fn with the resolved
// project root and shuts the host down.
func withHost(cmd *cobra.Command, fn func(ctx context.Context, h *host.Host, root string) error) error {
	ctx := cmd.Context()

	if err := config.LoadDotEnv("."); err != nil {
		return err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	resolve := project.ResolveRoot
	if useGitRoot {
		resolve = project.GitRoot
	}
	root, err := resolve(projectDir)
	if err != nil {
		return err
	}

	h, err := host.New(ctx, cfg, version)
	if err != nil {
		return err
	}

	runErr := fn(ctx, h, root)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Telemetry.ShutdownTimeout.Duration()+5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "funclibd by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
