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
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/predicate"
)

// SizeLimitDefault resolves a command's size limit from the configured
// log size when the command is queued.
const SizeLimitDefault int64 = -1

// Command describes one command whose output is collected. Build it with
// NewCommand; it is queued by value.
type Command struct {
	Cmd             string
	SuggestFilename string
	// RootSymlink is an archive root relative link to the output.
	RootSymlink string
	// Timeout of zero means no limit.
	Timeout time.Duration
	Stderr  bool
	// Chroot runs the command inside the sysroot when chroot mode is auto.
	Chroot bool
	RunAt  string
	Env    map[string]string
	Binary bool
	// SizeLimit in bytes; zero keeps all output.
	SizeLimit int64
	Subdir    string

	pred *predicate.Predicate
}

// CommandOption configures a Command.
type CommandOption func(*Command)

// WithSuggestedFilename names the output file instead of deriving the
// name from the command line.
func WithSuggestedFilename(name string) CommandOption {
	return func(c *Command) {
		c.SuggestFilename = name
	}
}

// WithRootSymlink adds a link to the output at the archive root.
func WithRootSymlink(name string) CommandOption {
	return func(c *Command) {
		c.RootSymlink = name
	}
}

// WithTimeout sets the command deadline.
func WithTimeout(d time.Duration) CommandOption {
	return func(c *Command) {
		c.Timeout = d
	}
}

// WithoutStderr discards standard error.
func WithoutStderr() CommandOption {
	return func(c *Command) {
		c.Stderr = false
	}
}

// WithoutChroot always runs the command on the host root.
func WithoutChroot() CommandOption {
	return func(c *Command) {
		c.Chroot = false
	}
}

// WithRunAt sets the working directory.
func WithRunAt(dir string) CommandOption {
	return func(c *Command) {
		c.RunAt = dir
	}
}

// WithEnv overlays environment variables.
func WithEnv(env map[string]string) CommandOption {
	return func(c *Command) {
		c.Env = maps.Clone(env)
	}
}

// AsBinary archives the output unmodified and excludes it from
// substitutions.
func AsBinary() CommandOption {
	return func(c *Command) {
		c.Binary = true
	}
}

// WithSizeLimitMB keeps only the last mb MiB of output. Zero keeps all of
// it.
func WithSizeLimitMB(mb int) CommandOption {
	return func(c *Command) {
		c.SizeLimit = int64(mb) * 1024 * 1024
	}
}

// WithSubdir stores the output below a subdirectory of the plugin's
// command directory.
func WithSubdir(dir string) CommandOption {
	return func(c *Command) {
		c.Subdir = dir
	}
}

// WithCommandPredicate gates the command on pred.
func WithCommandPredicate(pred *predicate.Predicate) CommandOption {
	return func(c *Command) {
		c.pred = pred
	}
}

// NewCommand returns a Command with the default timeout, stderr merged,
// chroot enabled and the size limit taken from configuration.
func NewCommand(cmd string, opts ...CommandOption) Command {
	c := Command{
		Cmd:       cmd,
		Timeout:   defaults.CommandTimeout,
		Stderr:    true,
		Chroot:    true,
		SizeLimit: SizeLimitDefault,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (p *Plugin) resolveSizeLimit(cmd Command) Command {
	if cmd.SizeLimit == SizeLimitDefault {
		cmd.SizeLimit = p.cfg.LogSizeBytes()
	}
	if p.cfg.AllLogs {
		cmd.SizeLimit = 0
	}
	return cmd
}

// AddCommandOutput queues cmd for collection when its predicate holds.
func (p *Plugin) AddCommandOutput(ctx context.Context, cmd Command) {
	if cmd.Cmd == "" {
		return
	}
	if !p.TestPredicate(ctx, true, cmd.pred) {
		p.log.Info("skipped command due to predicate",
			"command", cmd.Cmd, "predicate", p.Predicate(true, cmd.pred).String())
		return
	}
	p.commands = append(p.commands, p.resolveSizeLimit(cmd))
	p.log.Debug("packed command for collection", "command", cmd.Cmd)
}

// AddCommandOutputs queues several commands sharing the same options.
func (p *Plugin) AddCommandOutputs(ctx context.Context, cmds []string, opts ...CommandOption) {
	for _, c := range cmds {
		cmd := NewCommand(c, opts...)
		if len(cmds) > 1 && (cmd.SuggestFilename != "" || cmd.RootSymlink != "") {
			p.log.Warn("ambiguous filename or symlink for command list", "commands", cmds)
		}
		p.AddCommandOutput(ctx, cmd)
	}
}

func (p *Plugin) commandRoot(cmd Command) string {
	switch p.cfg.Chroot {
	case config.ChrootNever:
		return ""
	case config.ChrootAlways:
		return p.sysroot
	default:
		if cmd.Chroot {
			return p.sysroot
		}
		return ""
	}
}

// CommandOutput runs cmd and returns its result without archiving it.
// When the command is missing inside the sysroot it is retried once on
// the host root, unless chroot mode is always.
func (p *Plugin) CommandOutput(ctx context.Context, cmd Command) (*executor.Result, error) {
	if p.timeout.IsSet() {
		return nil, errors.NewWithContext(errors.ErrCodeTimeout, "plugin timed out",
			map[string]any{"plugin": p.Name(), "command": cmd.Cmd})
	}

	root := p.commandRoot(cmd)
	limit := cmd.SizeLimit
	if limit < 0 {
		limit = 0
	}
	res, err := p.runner.Run(ctx, executor.Request{
		Command:   cmd.Cmd,
		Timeout:   cmd.Timeout,
		Stderr:    cmd.Stderr,
		Chroot:    root,
		Dir:       cmd.RunAt,
		Env:       cmd.Env,
		SizeLimit: limit,
	})
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case executor.StatusTimeout:
		p.log.Warn("command timed out", "command", cmd.Cmd, "timeout", cmd.Timeout)
	case executor.StatusNotExecutable, executor.StatusNotFound:
		if root != "" && root != "/" && p.cfg.Chroot != config.ChrootAlways {
			p.log.Info("command not found in sysroot, retrying on host", "command", cmd.Cmd, "root", root)
			retry := cmd
			retry.Chroot = false
			return p.CommandOutput(ctx, retry)
		}
	}
	if res.Truncated {
		p.log.Debug("command output truncated", "command", cmd.Cmd, "limit", limit)
	}
	return res, nil
}

// commandFilename returns the output path relative to archive.CommandsDir,
// adding a numeric suffix when the name is taken.
func (p *Plugin) commandFilename(cmd Command) string {
	src := cmd.Cmd
	if cmd.SuggestFilename != "" {
		src = cmd.SuggestFilename
	}
	dir := p.Name()
	if cmd.Subdir != "" {
		dir = filepath.Join(dir, strings.TrimLeft(filepath.Clean("/"+cmd.Subdir), "/"))
	}
	base := filepath.Join(dir, MangleCommand(src, p.archive.NameMax()))

	name := base
	for i := 2; p.names[name] || p.archived(filepath.Join(archive.CommandsDir, name)); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	p.names[name] = true
	return name
}

func (p *Plugin) archived(dst string) bool {
	_, err := p.archive.Stat(dst)
	return err == nil
}

// collectCommand runs cmd, archives its output and records it. It returns
// the local path of the archived output, or "" when nothing was archived.
func (p *Plugin) collectCommand(ctx context.Context, cmd Command) (string, error) {
	if p.timeout.IsSet() {
		return "", nil
	}

	start := time.Now()
	res, err := p.CommandOutput(ctx, cmd)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeTimeout) {
			return "", nil
		}
		p.executed = append(p.executed, ExecutedCommand{Exe: cmd.Cmd, Status: executor.StatusNotRun})
		return "", err
	}
	if p.timeout.IsSet() {
		p.log.Debug("plugin timed out, dropping command output", "command", cmd.Cmd)
		return "", nil
	}

	if res.Status == executor.StatusNotExecutable || res.Status == executor.StatusNotFound {
		p.log.Info("command not found", "command", cmd.Cmd, "status", res.Status)
		p.executed = append(p.executed, ExecutedCommand{Exe: cmd.Cmd, Status: res.Status})
		return "", nil
	}

	name := p.commandFilename(cmd)
	dst := filepath.Join(archive.CommandsDir, name)
	if cmd.Binary {
		err = p.archive.AddBinary(res.Output, dst)
	} else {
		err = p.archive.AddString(string(res.Output), dst)
	}
	if err != nil {
		return "", errors.WrapWithContext(errors.ErrCodeInternal, "failed to archive command output", err,
			map[string]any{"plugin": p.Name(), "command": cmd.Cmd})
	}

	if cmd.RootSymlink != "" {
		link := "/" + strings.TrimLeft(cmd.RootSymlink, "/")
		target, err := filepath.Rel(filepath.Dir(link), "/"+dst)
		if err == nil {
			err = p.archive.AddLink(target, link)
		}
		if err != nil {
			p.log.Warn("failed to link command output", "command", cmd.Cmd, "link", cmd.RootSymlink, "error", err)
		}
	}

	p.executed = append(p.executed, ExecutedCommand{
		Exe:    cmd.Cmd,
		File:   name,
		Binary: cmd.Binary,
		Status: res.Status,
	})
	p.log.Debug("collected command output",
		"command", cmd.Cmd, "status", res.Status, "duration", time.Since(start))
	return p.archive.ArchivePath(dst), nil
}

// CollectCommandOutputNow runs cmd immediately and archives its output.
// It returns the local path of the output, or "" when the predicate does
// not hold or nothing was archived.
func (p *Plugin) CollectCommandOutputNow(ctx context.Context, cmd Command) (string, error) {
	if !p.TestPredicate(ctx, true, cmd.pred) {
		p.log.Info("skipped command due to predicate",
			"command", cmd.Cmd, "predicate", p.Predicate(true, cmd.pred).String())
		return "", nil
	}
	return p.collectCommand(ctx, p.resolveSizeLimit(cmd))
}

// CallExtProg runs prog and returns its result without archiving it.
func (p *Plugin) CallExtProg(ctx context.Context, prog string, opts ...CommandOption) (*executor.Result, error) {
	return p.CommandOutput(ctx, p.resolveSizeLimit(NewCommand(prog, opts...)))
}

// CheckExtProg reports whether prog runs and exits zero.
func (p *Plugin) CheckExtProg(ctx context.Context, prog string) bool {
	res, err := p.CallExtProg(ctx, prog)
	return err == nil && res.Status == 0
}
