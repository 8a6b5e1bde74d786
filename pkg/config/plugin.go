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
	"regexp"

	"github.com/NVIDIA/diagpack/pkg/errors"
)

// PluginSpec declares a plugin in configuration instead of code.
type PluginSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Profiles    []string `yaml:"profiles,omitempty"`
	Optional    bool     `yaml:"optional,omitempty"`
	// Timeout in seconds; zero uses the engine default.
	Timeout int `yaml:"timeout,omitempty"`

	Triggers Triggers `yaml:"triggers,omitempty"`

	Copy      []CopySpec    `yaml:"copy,omitempty"`
	Forbidden []string      `yaml:"forbidden,omitempty"`
	Commands  []CommandSpec `yaml:"commands,omitempty"`
	Journals  []JournalSpec `yaml:"journals,omitempty"`
	EnvVars   []string      `yaml:"envVars,omitempty"`
	Scrub     []ScrubSpec   `yaml:"scrub,omitempty"`
}

// Triggers enable a plugin when any one of them matches the host.
type Triggers struct {
	Files         []string `yaml:"files,omitempty"`
	Packages      []string `yaml:"packages,omitempty"`
	Commands      []string `yaml:"commands,omitempty"`
	KernelModules []string `yaml:"kernelModules,omitempty"`
	Services      []string `yaml:"services,omitempty"`
}

// Gate is an optional predicate on a single collection item.
type Gate struct {
	KernelModules []string `yaml:"kernelModules,omitempty"`
	Services      []string `yaml:"services,omitempty"`
}

// CopySpec collects one or more glob patterns.
type CopySpec struct {
	Paths       []string `yaml:"paths"`
	SizeLimitMB *int     `yaml:"sizeLimitMB,omitempty"`
	Tail        *bool    `yaml:"tail,omitempty"`
	When        *Gate    `yaml:"when,omitempty"`
}

// CommandSpec collects the output of a shell command.
type CommandSpec struct {
	Cmd             string            `yaml:"cmd"`
	SuggestFilename string            `yaml:"suggestFilename,omitempty"`
	RootSymlink     string            `yaml:"rootSymlink,omitempty"`
	TimeoutSeconds  *int              `yaml:"timeoutSeconds,omitempty"`
	Stderr          *bool             `yaml:"stderr,omitempty"`
	Chroot          *bool             `yaml:"chroot,omitempty"`
	RunAt           string            `yaml:"runAt,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	Binary          bool              `yaml:"binary,omitempty"`
	SizeLimitMB     *int              `yaml:"sizeLimitMB,omitempty"`
	Subdir          string            `yaml:"subdir,omitempty"`
	When            *Gate             `yaml:"when,omitempty"`
}

// JournalSpec collects systemd journal output.
type JournalSpec struct {
	Units       []string `yaml:"units,omitempty"`
	Boot        string   `yaml:"boot,omitempty"`
	Since       string   `yaml:"since,omitempty"`
	Until       string   `yaml:"until,omitempty"`
	Lines       int      `yaml:"lines,omitempty"`
	Output      string   `yaml:"output,omitempty"`
	Identifier  string   `yaml:"identifier,omitempty"`
	Catalog     *bool    `yaml:"catalog,omitempty"`
	Kernel      bool     `yaml:"kernel,omitempty"`
	SizeLimitMB *int     `yaml:"sizeLimitMB,omitempty"`
}

// ScrubSpec is a post-collection substitution. Exactly one of Command,
// File or Path selects the targets.
type ScrubSpec struct {
	Command     string `yaml:"command,omitempty"`
	File        string `yaml:"file,omitempty"`
	Path        string `yaml:"path,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty"`
	// Secrets redacts PEM style blocks from matching command output
	// instead of applying Pattern.
	Secrets bool `yaml:"secrets,omitempty"`
}

// Validate checks a declarative plugin for structural errors.
func (p *PluginSpec) Validate() error {
	if p.Name == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "plugin name must not be empty")
	}
	ctx := map[string]any{"plugin": p.Name}

	if p.Timeout < 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest, "plugin timeout must not be negative", ctx)
	}
	for _, c := range p.Copy {
		if len(c.Paths) == 0 {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "copy entry without paths", ctx)
		}
	}
	for _, c := range p.Commands {
		if c.Cmd == "" {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "command entry without cmd", ctx)
		}
	}
	for _, s := range p.Scrub {
		if err := s.validate(); err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidRequest, "invalid scrub entry", err, ctx)
		}
	}
	return nil
}

func (s *ScrubSpec) validate() error {
	targets := 0
	for _, v := range []string{s.Command, s.File, s.Path} {
		if v != "" {
			targets++
		}
	}
	if targets != 1 {
		return errors.New(errors.ErrCodeInvalidRequest, "exactly one of command, file or path is required")
	}
	if s.Secrets {
		if s.Command == "" {
			return errors.New(errors.ErrCodeInvalidRequest, "secrets applies to command output only")
		}
		return nil
	}
	if s.Pattern == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "pattern is required")
	}
	if _, err := regexp.Compile(s.Pattern); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "pattern does not compile", err)
	}
	if s.Path != "" {
		if _, err := regexp.Compile(s.Path); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRequest, "path does not compile", err)
		}
	}
	return nil
}
