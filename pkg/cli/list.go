/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/policy"
	"github.com/NVIDIA/diagpack/pkg/runner"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:                  "list",
		EnableShellCompletion: true,
		Usage:                 "List plugins and whether they would run",
		Description: `Evaluates plugin selection against the host, without collecting anything,
and prints every known plugin with its tags, options and, for plugins that
would not run, the reason.

# Examples

  diagpack list --format table
  diagpack list --plugins ./nvidia.yaml --enable-plugins nvidia`,
		Flags: append([]cli.Flag{
			configFlag(),
			sysrootFlag(),
			pluginSetFlag(),
			outputFlag(),
			formatFlag(),
		}, selectionFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			defs, err := loadDefinitions(ctx, cmd, cfg)
			if err != nil {
				return err
			}

			// Plugins are built against an archive even though nothing is
			// written to it.
			scratch, err := os.MkdirTemp(cfg.TmpDir, name+"-list-")
			if err != nil {
				return fmt.Errorf("failed to create scratch directory: %w", err)
			}
			defer os.RemoveAll(scratch)
			a, err := archive.NewDirectory(scratch, "list")
			if err != nil {
				return err
			}

			exec := executor.New()
			pol := policy.NewLinux(policy.WithSysroot(cfg.Sysroot), policy.WithRunner(exec))
			defer pol.Close()

			opts := []runner.Option{runner.WithVersion(version)}
			if tag, ok := detectPlatform(cfg.Sysroot); ok {
				opts = append(opts, runner.WithPlatform(tag))
			}
			r, err := runner.New(cfg, a, pol, exec, defs, opts...)
			if err != nil {
				return err
			}

			list, err := r.List(ctx)
			if err != nil {
				return err
			}
			slog.Debug("listed plugins", "count", len(list.Plugins))
			return writeDocument(ctx, outFormat, cmd.String("output"), list)
		},
	}
}
