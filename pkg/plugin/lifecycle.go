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
	"path/filepath"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/collector/file"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// State is a plugin's position in its lifecycle. Transitions are linear.
type State int

const (
	StateCreated State = iota
	StateSetup
	StateCollecting
	StatePostProcessing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSetup:
		return "setup"
	case StateCollecting:
		return "collecting"
	case StatePostProcessing:
		return "postprocessing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state.
func (p *Plugin) State() State {
	return p.state
}

func (p *Plugin) requireState(want State, phase string) error {
	if p.state != want {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest, "plugin phase called out of order",
			map[string]any{"plugin": p.Name(), "phase": phase, "state": p.state.String(), "want": want.String()})
	}
	return nil
}

// Setup runs the definition's Setup, which queues what to collect.
func (p *Plugin) Setup(ctx context.Context) error {
	if err := p.requireState(StateCreated, "setup"); err != nil {
		return err
	}
	p.state = StateSetup
	if err := p.def.Setup(ctx, p); err != nil {
		return errors.WrapWithContext(errors.ErrCodeInternal, "plugin setup failed", err,
			map[string]any{"plugin": p.Name()})
	}
	return nil
}

// SetupVerify queues the package verification command for the plugin's
// packages.
func (p *Plugin) SetupVerify(ctx context.Context) error {
	if err := p.requireState(StateSetup, "setup verify"); err != nil {
		return err
	}
	pkgs := p.meta.VerifyPackages
	if len(pkgs) == 0 {
		pkgs = p.meta.Packages
	}
	if len(pkgs) == 0 {
		return nil
	}
	if cmd := p.policy.VerifyCommand(pkgs); cmd != "" {
		p.AddCommandOutput(ctx, NewCommand(cmd))
	}
	return nil
}

// Collect copies the queued paths, runs the queued commands and writes
// the queued strings, in that order. Once the timeout flag is set the
// remaining work is skipped; truncated work is not an error.
func (p *Plugin) Collect(ctx context.Context) error {
	if err := p.requireState(StateSetup, "collect"); err != nil {
		return err
	}
	p.state = StateCollecting

	for _, path := range p.copyPaths.drain() {
		if p.timeout.IsSet() {
			p.log.Debug("plugin timed out, skipping remaining paths")
			break
		}
		p.log.Debug("collecting path", "path", path)
		if err := p.copyPath(ctx, path); err != nil {
			p.log.Error("failed to copy path", "path", path, "error", err)
		}
	}

	cmds := p.commands
	p.commands = nil
	for _, cmd := range cmds {
		if p.timeout.IsSet() {
			p.log.Debug("plugin timed out, skipping remaining commands")
			break
		}
		if _, err := p.collectCommand(ctx, cmd); err != nil {
			p.log.Warn("failed to collect command output", "command", cmd.Cmd, "error", err)
		}
	}

	strs := p.strs
	p.strs = nil
	for _, s := range strs {
		if p.timeout.IsSet() {
			p.log.Debug("plugin timed out, skipping remaining strings")
			break
		}
		p.collectString(s)
	}
	return nil
}

func (p *Plugin) collectString(s stringEntry) {
	dst := filepath.Join(archive.StringsDir, p.Name(), s.name)
	content := s.content
	if s.tailOf != "" {
		b, err := file.Tail(s.tailOf, s.tailLen)
		if err != nil {
			p.log.Warn("failed to tail file", "path", s.tailOf, "error", err)
			return
		}
		content = string(b)
	}
	if err := p.archive.AddString(content, dst); err != nil {
		p.log.Warn("failed to archive string", "file", s.name, "error", err)
		return
	}
	if s.linkAt == "" {
		return
	}
	rel, err := filepath.Rel(filepath.Dir(s.linkAt), "/")
	if err == nil {
		err = p.archive.AddLink(filepath.Join(rel, dst), s.linkAt)
	}
	if err != nil {
		p.log.Warn("failed to link tailed file", "path", s.linkAt, "error", err)
	}
}

// Postproc runs the definition's post-processing, if any, against the
// archived data. It also runs after a timeout so partial data is still
// scrubbed.
func (p *Plugin) Postproc(ctx context.Context) error {
	if err := p.requireState(StateCollecting, "postproc"); err != nil {
		return err
	}
	p.state = StatePostProcessing
	defer func() { p.state = StateDone }()

	pp, ok := p.def.(Postprocessor)
	if !ok {
		return nil
	}
	if err := pp.Postproc(ctx, p); err != nil {
		return errors.WrapWithContext(errors.ErrCodeInternal, "plugin postproc failed", err,
			map[string]any{"plugin": p.Name()})
	}
	return nil
}
