package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/funclibd/internal/host"
)

func newWriteCmd() *cobra.Command {
	var name, file string

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a function into the project library",
		Long: `Write a function's source into <project>/<name>.py and record it in the
manifest.

Examples:
  # From a file
  funclibd write --project . --name area --file area.py

  # From stdin
  cat area.py | funclibd write --name area`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			code, err := readSource(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return withHost(cmd, func(ctx context.Context, h *host.Host, root string) error {
				if err := h.Library.WriteToLibrary(ctx, root, name, code).Wait(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), h.Library.FunctionPath(root, name))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "function name")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "source file, - for stdin")
	return cmd
}

func readSource(stdin io.Reader, file string) (string, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	return string(data), nil
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete every function recorded in the manifest, then the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(ctx context.Context, h *host.Host, root string) error {
				report, err := h.Library.DeleteLibraryFiles(ctx, root)
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				if encErr := enc.Encode(report); encErr != nil {
					return errors.Join(err, encErr)
				}
				return err
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the functions recorded in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(ctx context.Context, h *host.Host, root string) error {
				names, err := h.Library.List(ctx, root)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}
