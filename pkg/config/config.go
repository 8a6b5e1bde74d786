// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// ChrootMode controls whether commands run inside the sysroot.
type ChrootMode string

const (
	// ChrootAuto chroots into the sysroot when it is not "/" and falls back
	// to the host root when the command is missing there.
	ChrootAuto ChrootMode = "auto"
	// ChrootAlways never falls back to the host root.
	ChrootAlways ChrootMode = "always"
	// ChrootNever runs every command on the host.
	ChrootNever ChrootMode = "never"
)

// Compression selects how the finalized archive is compressed.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// GlobalTimeoutUnset marks a timeout that was not configured.
const GlobalTimeoutUnset = -1

// Config is the run configuration shared by every plugin.
type Config struct {
	// Sysroot is the root of the filesystem being collected. "/" for the
	// running host.
	Sysroot string `yaml:"sysroot"`
	TmpDir  string `yaml:"tmpDir,omitempty"`
	Label   string `yaml:"label,omitempty"`
	DryRun  bool   `yaml:"dryRun,omitempty"`

	Chroot ChrootMode `yaml:"chroot"`

	// LogSize is the per copy-spec and per command size limit in MiB.
	// Zero disables the limit.
	LogSize int  `yaml:"logSize"`
	AllLogs bool `yaml:"allLogs,omitempty"`

	// PluginTimeout in seconds. -1 leaves plugin defaults in place.
	PluginTimeout int  `yaml:"pluginTimeout"`
	Verify        bool `yaml:"verify,omitempty"`

	Threads int `yaml:"threads"`
	// CommandRate limits command spawns per second across plugins. Zero
	// disables throttling.
	CommandRate float64 `yaml:"commandRate,omitempty"`

	Compression       Compression `yaml:"compression"`
	EncryptRecipients []string    `yaml:"encryptRecipients,omitempty"`

	OnlyPlugins   []string `yaml:"onlyPlugins,omitempty"`
	SkipPlugins   []string `yaml:"skipPlugins,omitempty"`
	EnablePlugins []string `yaml:"enablePlugins,omitempty"`

	// PluginOptions maps plugin name to option name to raw value.
	PluginOptions map[string]map[string]string `yaml:"pluginOptions,omitempty"`

	Plugins []PluginSpec `yaml:"plugins,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Sysroot:       "/",
		Chroot:        ChrootAuto,
		LogSize:       defaults.LogSizeMB,
		PluginTimeout: GlobalTimeoutUnset,
		Threads:       4,
		Compression:   CompressionZstd,
	}
}

// Load reads a YAML configuration file on top of Default. Unknown fields
// are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, fmt.Sprintf("config file %q not found", path), err)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to open config file %q", path), err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses configuration from r on top of Default.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the declarative plugin definitions.
func (c *Config) Validate() error {
	if c.Sysroot == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "sysroot must not be empty")
	}
	if !slices.Contains([]ChrootMode{ChrootAuto, ChrootAlways, ChrootNever}, c.Chroot) {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest, "invalid chroot mode",
			map[string]any{"chroot": string(c.Chroot)})
	}
	if !slices.Contains([]Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4}, c.Compression) {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest, "invalid compression",
			map[string]any{"compression": string(c.Compression)})
	}
	if c.LogSize < 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "logSize must not be negative")
	}
	if c.PluginTimeout < GlobalTimeoutUnset {
		return errors.New(errors.ErrCodeInvalidRequest, "pluginTimeout must be -1 or greater")
	}
	if c.Threads < 1 {
		return errors.New(errors.ErrCodeInvalidRequest, "threads must be at least 1")
	}
	if c.CommandRate < 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "commandRate must not be negative")
	}

	seen := make(map[string]bool, len(c.Plugins))
	for i := range c.Plugins {
		p := &c.Plugins[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "duplicate plugin definition",
				map[string]any{"plugin": p.Name})
		}
		seen[p.Name] = true
	}
	return nil
}

// LogSizeBytes returns LogSize in bytes.
func (c *Config) LogSizeBytes() int64 {
	return int64(c.LogSize) * 1024 * 1024
}

// OptionsFor returns the raw option overrides for plugin name.
func (c *Config) OptionsFor(name string) map[string]string {
	return c.PluginOptions[name]
}

// SetPluginOption records a plugin option override, typically from the
// command line.
func (c *Config) SetPluginOption(plugin, option, value string) {
	if c.PluginOptions == nil {
		c.PluginOptions = make(map[string]map[string]string)
	}
	if c.PluginOptions[plugin] == nil {
		c.PluginOptions[plugin] = make(map[string]string)
	}
	c.PluginOptions[plugin][option] = value
}
