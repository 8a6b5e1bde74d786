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
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/oci"
	"github.com/NVIDIA/diagpack/pkg/policy"
	"github.com/NVIDIA/diagpack/pkg/runner"
	"github.com/NVIDIA/diagpack/pkg/serializer"
)

// commandBurst is the number of processes that may start at once before
// --command-rate throttling applies.
const commandBurst = 4

func collectCmd() *cli.Command {
	return &cli.Command{
		Name:                  "collect",
		EnableShellCompletion: true,
		Usage:                 "Collect a diagnostic archive",
		Description: `Runs every enabled plugin against the host or a mounted sysroot and packs
the collected files and command output into an archive:

  <label>-<host>-<date>-<id>.tar.zst
  <label>-<host>-<date>-<id>.tar.zst.b3   (BLAKE3 checksum)

A run document describing the plugins, the collected files and commands,
skipped plugins and failures is written to --output (stdout by default)
and stored inside the archive as sos_reports/manifest.json.

# Examples

Collect with the default configuration:
  diagpack collect

Collect from a mounted disk image, kernel and logs only:
  diagpack collect --sysroot /mnt/host --only-plugins kernel,logs

Load declarative plugins and set a plugin option:
  diagpack collect --plugins ./nvidia.yaml --plugin-option logs.log_days=7

Encrypt the archive and push it to a registry:
  diagpack collect --encrypt-to age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p \
    --push oci://ghcr.io/acme/diag

Store the run document in a ConfigMap:
  diagpack collect --output cm://diag/node-1 --format json`,
		Flags: append([]cli.Flag{
			configFlag(),
			sysrootFlag(),
			pluginSetFlag(),
			&cli.StringFlag{
				Name:  "tmp-dir",
				Usage: "Directory the archive is assembled in (default: system temp directory)",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"d"},
				Usage:   "Directory the finalized archive is written to (default: --tmp-dir)",
			},
			&cli.StringFlag{
				Name:  "label",
				Usage: "Label prefixed to the archive name",
			},
			&cli.StringFlag{
				Name:  "chroot",
				Usage: "Run commands inside the sysroot (auto, always, never)",
			},
			&cli.IntFlag{
				Name:  "log-size",
				Usage: "Size limit in MiB per copy spec and command, 0 disables the limit",
			},
			&cli.BoolFlag{
				Name:  "all-logs",
				Usage: "Collect all logs regardless of size",
			},
			&cli.IntFlag{
				Name:  "plugin-timeout",
				Usage: "Timeout in seconds for each plugin's collection",
			},
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"j"},
				Usage:   "Number of plugins collected concurrently",
			},
			&cli.FloatFlag{
				Name:  "command-rate",
				Usage: "Maximum commands started per second across plugins, 0 disables throttling",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Run package and data verification in plugins that support it",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log what would be collected without running commands or writing an archive",
			},
			&cli.StringFlag{
				Name:  "compression",
				Usage: "Archive compression (none, gzip, zstd, lz4)",
			},
			&cli.StringSliceFlag{
				Name:  "encrypt-to",
				Usage: "Encrypt the archive to an age X25519 recipient, can be repeated",
			},
			&cli.BoolFlag{
				Name:  "keep-directory",
				Usage: "Keep the archive directory after the tarball is written",
			},
			&cli.StringFlag{
				Name:  "push",
				Usage: "Push the archive to an OCI registry (format: oci://registry/repository[:tag])",
			},
			&cli.BoolFlag{
				Name:  "insecure-tls",
				Usage: "Skip TLS certificate verification for the OCI registry",
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "Use HTTP instead of HTTPS for the OCI registry (for local development)",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write collection metrics in Prometheus text format to this file",
			},
			outputFlag(),
			formatFlag(),
		}, selectionFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			var ref *oci.Reference
			if target := cmd.String("push"); target != "" {
				if ref, err = oci.ParseReference(target); err != nil {
					return fmt.Errorf("invalid --push value: %w", err)
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			m, a, err := collect(ctx, cmd, cfg)
			if err != nil {
				return err
			}

			if cfg.DryRun {
				slog.Info("dry run, not writing an archive")
				if err := a.Cleanup(); err != nil {
					slog.Warn("failed to remove archive directory", "path", a.Root(), "error", err)
				}
			} else {
				if err := finalize(ctx, cmd, cfg, a, m); err != nil {
					return err
				}
				if ref != nil {
					if err := push(ctx, cmd, ref, a.Name(), m); err != nil {
						return err
					}
				}
			}

			if path := cmd.String("metrics-file"); path != "" {
				if err := runner.WriteMetrics(path); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
			}

			return writeDocument(ctx, outFormat, cmd.String("output"), m)
		},
	}
}

// collect runs the plugins into a new archive directory.
func collect(ctx context.Context, cmd *cli.Command, cfg *config.Config) (*runner.Manifest, *archive.Directory, error) {
	defs, err := loadDefinitions(ctx, cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		slog.Warn("failed to read hostname", "error", err)
	}
	base := cfg.TmpDir
	if base == "" {
		base = os.TempDir()
	}
	a, err := archive.NewDirectory(base, archive.Name(cfg.Label, host, time.Now()))
	if err != nil {
		return nil, nil, err
	}
	slog.Info("collecting", "archive", a.Root(), "sysroot", cfg.Sysroot, "plugins", len(defs))

	exec := executor.New(executor.WithRateLimit(cfg.CommandRate, commandBurst))
	pol := policy.NewLinux(policy.WithSysroot(cfg.Sysroot), policy.WithRunner(exec))
	defer pol.Close()

	opts := []runner.Option{runner.WithVersion(version)}
	if tag, ok := detectPlatform(cfg.Sysroot); ok {
		opts = append(opts, runner.WithPlatform(tag))
	}
	r, err := runner.New(cfg, a, pol, exec, defs, opts...)
	if err != nil {
		return nil, nil, err
	}

	m, err := r.Run(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collection failed: %w", err)
	}
	slog.Info("collection complete",
		"plugins", len(m.Plugins),
		"skipped", len(m.Skipped),
		"failures", len(m.Failures),
		"timedOut", len(m.TimedOut),
		"duration", m.Duration)
	return m, a, nil
}

func finalize(ctx context.Context, cmd *cli.Command, cfg *config.Config, a *archive.Directory, m *runner.Manifest) error {
	fin, err := a.Finalize(ctx, archive.FinalizeOptions{
		OutputDir:   cmd.String("output-dir"),
		Compression: cfg.Compression,
		Recipients:  cfg.EncryptRecipients,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	m.Archive = fin
	slog.Info("archive written",
		"path", fin.Path,
		"size", fin.Size,
		"checksum", fin.Checksum,
		"encrypted", fin.Encrypted)

	if !cmd.Bool("keep-directory") {
		if err := a.Cleanup(); err != nil {
			slog.Warn("failed to remove archive directory", "path", a.Root(), "error", err)
		}
	}
	return nil
}

func push(ctx context.Context, cmd *cli.Command, ref *oci.Reference, archiveName string, m *runner.Manifest) error {
	if ref.Tag == "" {
		ref = ref.WithTag(oci.DefaultTag(archiveName))
	}
	res, err := oci.Push(ctx, oci.PushOptions{
		ArchivePath:  m.Archive.Path,
		ChecksumPath: m.Archive.ChecksumPath,
		Reference:    ref,
		Version:      version,
		PlainHTTP:    cmd.Bool("plain-http"),
		InsecureTLS:  cmd.Bool("insecure-tls"),
		Annotations: map[string]string{
			"com.nvidia.diagpack.host":    m.Host,
			"com.nvidia.diagpack.plugins": pluginNames(m),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to push archive: %w", err)
	}
	m.Pushed = res.Reference + "@" + res.Digest
	slog.Info("archive pushed", "reference", res.Reference, "digest", res.Digest)
	return nil
}

func pluginNames(m *runner.Manifest) string {
	names := make([]string, 0, len(m.Plugins))
	for _, p := range m.Plugins {
		names = append(names, p.Name)
	}
	return strings.Join(names, ",")
}

// writeDocument serializes v to path in format.
func writeDocument(ctx context.Context, format serializer.Format, path string, v any) error {
	w, err := serializer.NewFileWriterOrStdout(format, path)
	if err != nil {
		return err
	}
	if c, ok := w.(serializer.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close output", "error", err)
			}
		}()
	}
	if err := w.Serialize(ctx, v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
