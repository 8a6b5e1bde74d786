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

package plugin

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/policy"
	"github.com/NVIDIA/diagpack/pkg/predicate"
)

// Definition is implemented by every plugin. Setup declares what to
// collect by calling the Add methods of p; it must not collect anything
// itself.
type Definition interface {
	Metadata() Metadata
	Setup(ctx context.Context, p *Plugin) error
}

// Postprocessor is implemented by definitions that scrub collected data.
type Postprocessor interface {
	Postproc(ctx context.Context, p *Plugin) error
}

// Enabler is implemented by definitions that replace the trigger based
// enablement check.
type Enabler interface {
	CheckEnabled(ctx context.Context, p *Plugin) bool
}

// Metadata describes a plugin.
type Metadata struct {
	Name        string
	Description string
	Version     string
	Tags        TagSet

	// Triggers. When any is set the plugin is enabled only if one matches
	// the host. Entries may contain SCLPlaceholder for SCL plugins.
	Packages      []string
	Files         []string
	Commands      []string
	KernelModules []string
	Services      []string

	Profiles     []string
	RequiresRoot bool
	// Optional plugins run only when explicitly enabled.
	Optional bool
	// Timeout is the plugin's own default collection budget. Zero means
	// defaults.PluginTimeout.
	Timeout time.Duration
	Options []OptionSpec
	// VerifyPackages are checked by SetupVerify. Defaults to Packages.
	VerifyPackages []string
}

// Deps are the collaborators a Plugin works against.
type Deps struct {
	Archive archive.Archive
	Policy  policy.Policy
	Runner  executor.Runner
	// Evaluator builds predicates. Defaults to one bound to Policy and the
	// configured dry-run flag.
	Evaluator *predicate.Evaluator
	Logger    *slog.Logger
}

// Plugin is the runtime state of one plugin for one collection run.
type Plugin struct {
	def  Definition
	meta Metadata
	cfg  *config.Config

	archive archive.Archive
	policy  policy.Policy
	runner  executor.Runner
	eval    *predicate.Evaluator
	log     *slog.Logger

	state   State
	timeout TimeoutFlag
	options *Options

	pred    *predicate.Predicate
	cmdPred *predicate.Predicate

	sysroot   string
	forbidden []string
	copyPaths *pathSet
	commands  []Command
	strs      []stringEntry

	copied   []CopiedFile
	executed []ExecutedCommand
	names    map[string]bool

	envVars    []string
	alerts     []string
	customText strings.Builder
	scls       []string
}

// CopiedFile records a path copied into the archive.
type CopiedFile struct {
	SrcPath  string `json:"srcPath" yaml:"srcPath"`
	DstPath  string `json:"dstPath" yaml:"dstPath"`
	Symlink  bool   `json:"symlink,omitempty" yaml:"symlink,omitempty"`
	PointsTo string `json:"pointsTo,omitempty" yaml:"pointsTo,omitempty"`
}

// ExecutedCommand records a command run for collection. File is relative
// to archive.CommandsDir and empty when no output was archived. Status is
// executor.StatusNotRun when the command could not be started at all.
type ExecutedCommand struct {
	Exe    string `json:"exe" yaml:"exe"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Binary bool   `json:"binary,omitempty" yaml:"binary,omitempty"`
	Status int    `json:"status" yaml:"status"`
}

type stringEntry struct {
	content string
	name    string

	// tail fallback: content is read from tailOf at collection time and a
	// link is placed at linkAt.
	tailOf  string
	tailLen int64
	linkAt  string
}

// New binds def to one collection run.
func New(def Definition, cfg *config.Config, deps Deps) (*Plugin, error) {
	if def == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "plugin definition is required")
	}
	meta := def.Metadata()
	if meta.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "plugin name must not be empty")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Archive == nil || deps.Policy == nil || deps.Runner == nil {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "archive, policy and runner are required",
			map[string]any{"plugin": meta.Name})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Evaluator == nil {
		deps.Evaluator = predicate.NewEvaluator(deps.Policy, cfg.DryRun)
	}

	sysroot := filepath.Clean(cfg.Sysroot)
	if sysroot == "" || sysroot == "." {
		sysroot = "/"
	}
	// Link targets are made relative to canonical directories, so the
	// sysroot must be canonical too.
	if resolved, err := filepath.EvalSymlinks(sysroot); err == nil {
		sysroot = resolved
	}

	p := &Plugin{
		def:       def,
		meta:      meta,
		cfg:       cfg,
		archive:   deps.Archive,
		policy:    deps.Policy,
		runner:    deps.Runner,
		eval:      deps.Evaluator,
		log:       deps.Logger.With("plugin", meta.Name),
		sysroot:   sysroot,
		copyPaths: newPathSet(),
		names:     make(map[string]bool),
	}
	p.options = newOptions(meta.Options, cfg)
	p.pred = p.eval.New()
	return p, nil
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return p.meta.Name
}

// Metadata returns the plugin's metadata.
func (p *Plugin) Metadata() Metadata {
	return p.meta
}

// Definition returns the definition the plugin was created from.
func (p *Plugin) Definition() Definition {
	return p.def
}

// Config returns the run configuration.
func (p *Plugin) Config() *config.Config {
	return p.cfg
}

// Policy returns the host policy.
func (p *Plugin) Policy() policy.Policy {
	return p.policy
}

// Logger returns the plugin scoped logger.
func (p *Plugin) Logger() *slog.Logger {
	return p.log
}

// Timeout returns the plugin's timeout flag.
func (p *Plugin) Timeout() *TimeoutFlag {
	return &p.timeout
}

// CopiedFiles returns a copy of the copied file ledger.
func (p *Plugin) CopiedFiles() []CopiedFile {
	return append([]CopiedFile(nil), p.copied...)
}

// ExecutedCommands returns a copy of the executed command ledger.
func (p *Plugin) ExecutedCommands() []ExecutedCommand {
	return append([]ExecutedCommand(nil), p.executed...)
}

// QueuedCommands returns a copy of the commands waiting for Collect.
func (p *Plugin) QueuedCommands() []Command {
	return append([]Command(nil), p.commands...)
}

// QueuedPaths returns the paths waiting for Collect, in collection order.
func (p *Plugin) QueuedPaths() []string {
	return p.copyPaths.list()
}

// ForbiddenPaths returns the forbidden host paths.
func (p *Plugin) ForbiddenPaths() []string {
	return append([]string(nil), p.forbidden...)
}
