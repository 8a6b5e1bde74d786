/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/plugin"
	"github.com/NVIDIA/diagpack/pkg/plugins"
	"github.com/NVIDIA/diagpack/pkg/policy"
	"github.com/NVIDIA/diagpack/pkg/serializer"
)

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage: `Output destination for the run document.
	Supports: file paths, stdout (empty or "-"), or ConfigMap URIs (cm://namespace/name).`,
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("Output format (supported values: %s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the run configuration file (YAML)",
		Sources: cli.EnvVars("DIAGPACK_CONFIG"),
	}
}

func pluginSetFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name: "plugins",
		Usage: `Path/URI of a PluginSet document with declarative plugins, can be repeated.
	Supports: file paths, HTTP/HTTPS URLs, or ConfigMap URIs (cm://namespace/name).`,
	}
}

func sysrootFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "sysroot",
		Aliases: []string{"s"},
		Usage:   "Root of the filesystem to collect from (default: /)",
	}
}

// selectionFlags control which plugins run; shared by collect and list.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "only-plugins",
			Aliases: []string{"n"},
			Usage:   "Run only the named plugins, can be repeated",
		},
		&cli.StringSliceFlag{
			Name:    "skip-plugins",
			Aliases: []string{"k"},
			Usage:   "Never run the named plugins, can be repeated",
		},
		&cli.StringSliceFlag{
			Name:    "enable-plugins",
			Aliases: []string{"e"},
			Usage:   "Run the named plugins even when not triggered, can be repeated",
		},
		&cli.StringSliceFlag{
			Name:    "plugin-option",
			Aliases: []string{"O"},
			Usage:   "Plugin option (format: plugin.option=value, can be repeated)",
		},
	}
}

// parseOutputFormat validates the --format flag.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q (supported values: %s)",
			f, strings.Join(serializer.SupportedFormats(), ", "))
	}
	return f, nil
}

// parsePluginOption splits plugin.option=value.
func parsePluginOption(s string) (string, string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", "", fmt.Errorf("invalid plugin option %q (format: plugin.option=value)", s)
	}
	p, opt, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || p == "" || opt == "" {
		return "", "", "", fmt.Errorf("invalid plugin option %q (format: plugin.option=value)", s)
	}
	return p, opt, value, nil
}

// loadConfig reads the configuration file, when given, and applies the
// flags that were set on the command line.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if cmd.IsSet("sysroot") {
		cfg.Sysroot = cmd.String("sysroot")
	}
	if cmd.IsSet("only-plugins") {
		cfg.OnlyPlugins = cmd.StringSlice("only-plugins")
	}
	cfg.SkipPlugins = append(cfg.SkipPlugins, cmd.StringSlice("skip-plugins")...)
	cfg.EnablePlugins = append(cfg.EnablePlugins, cmd.StringSlice("enable-plugins")...)
	for _, o := range cmd.StringSlice("plugin-option") {
		p, opt, value, err := parsePluginOption(o)
		if err != nil {
			return nil, err
		}
		cfg.SetPluginOption(p, opt, value)
	}

	// The flags below exist on collect only.
	if cmd.IsSet("tmp-dir") {
		cfg.TmpDir = cmd.String("tmp-dir")
	}
	if cmd.IsSet("label") {
		cfg.Label = cmd.String("label")
	}
	if cmd.IsSet("chroot") {
		cfg.Chroot = config.ChrootMode(cmd.String("chroot"))
	}
	if cmd.IsSet("compression") {
		cfg.Compression = config.Compression(cmd.String("compression"))
	}
	if cmd.IsSet("log-size") {
		cfg.LogSize = int(cmd.Int("log-size"))
	}
	if cmd.IsSet("plugin-timeout") {
		cfg.PluginTimeout = int(cmd.Int("plugin-timeout"))
	}
	if cmd.IsSet("threads") {
		cfg.Threads = int(cmd.Int("threads"))
	}
	if cmd.IsSet("command-rate") {
		cfg.CommandRate = cmd.Float("command-rate")
	}
	if cmd.Bool("all-logs") {
		cfg.AllLogs = true
	}
	if cmd.Bool("verify") {
		cfg.Verify = true
	}
	if cmd.Bool("dry-run") {
		cfg.DryRun = true
	}
	cfg.EncryptRecipients = append(cfg.EncryptRecipients, cmd.StringSlice("encrypt-to")...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDefinitions returns the built-in plugins plus the declarative ones
// from the configuration and every --plugins document.
func loadDefinitions(ctx context.Context, cmd *cli.Command, cfg *config.Config) ([]plugin.Definition, error) {
	specs := append([]config.PluginSpec(nil), cfg.Plugins...)
	for _, path := range cmd.StringSlice("plugins") {
		set, err := plugins.LoadSet(ctx, path, version)
		if err != nil {
			return nil, fmt.Errorf("failed to load plugin set from %q: %w", path, err)
		}
		slog.Debug("loaded plugin set", "path", path, "plugins", len(set.Plugins))
		specs = append(specs, set.Plugins...)
	}
	return plugins.Definitions(specs...)
}

// detectPlatform maps the sysroot's os-release to a platform tag. ok is
// false when the distribution is unknown and no platform filter applies.
func detectPlatform(sysroot string) (plugin.Tag, bool) {
	rel, err := policy.ReadRelease(sysroot)
	if err != nil {
		slog.Warn("failed to read os-release, not filtering plugins by platform", "error", err)
		return 0, false
	}
	tag, ok := plugin.PlatformTag(rel.Families()...)
	slog.Debug("detected platform", "id", rel.ID, "name", rel.PrettyName, "platform", plugin.Tags(tag).String(), "known", ok)
	return tag, ok
}
