package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/funclibd/internal/host"
	"github.com/fyrsmithlabs/funclibd/internal/runconfig"
)

func newRunConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runconfig",
		Short: "Work with run configurations",
	}
	cmd.AddCommand(newRunConfigApplyCmd())
	return cmd
}

func newRunConfigApplyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Register run configurations and print them with the library on PYTHONPATH",
		Long: `Load run configurations from a YAML or TOML file, register them with the
host (which puts the project root on each PYTHONPATH) and print the result
as YAML.

Examples:
  funclibd runconfig apply --project . --file runconfigs.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			settings, err := runconfig.LoadFile(file)
			if err != nil {
				return err
			}
			return withHost(cmd, func(ctx context.Context, h *host.Host, root string) error {
				for _, s := range settings {
					if s.ProjectPath == "" {
						s.ProjectPath = root
					}
					if err := h.RunConfigs.Add(ctx, s); err != nil {
						return err
					}
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(runconfig.File{RunConfigurations: h.RunConfigs.List(ctx)})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "run configuration file (.yaml, .yml or .toml)")
	return cmd
}
