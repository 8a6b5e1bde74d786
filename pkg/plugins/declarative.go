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

package plugins

import (
	"context"
	"time"

	"k8s.io/utils/ptr"

	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/plugin"
	"github.com/NVIDIA/diagpack/pkg/predicate"
)

// Declarative is a plugin defined in configuration.
type Declarative struct {
	spec config.PluginSpec
	tags plugin.TagSet
}

// NewDeclarative validates spec and returns its plugin definition.
func NewDeclarative(spec config.PluginSpec) (*Declarative, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	tags, unknown := plugin.ParseTags(spec.Tags)
	if len(unknown) > 0 {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "unknown plugin tags",
			map[string]any{"plugin": spec.Name, "tags": unknown})
	}
	return &Declarative{spec: spec, tags: tags}, nil
}

func (d *Declarative) Metadata() plugin.Metadata {
	s := d.spec
	return plugin.Metadata{
		Name:          s.Name,
		Description:   s.Description,
		Tags:          d.tags,
		Profiles:      s.Profiles,
		Optional:      s.Optional,
		Timeout:       time.Duration(s.Timeout) * time.Second,
		Packages:      s.Triggers.Packages,
		Files:         s.Triggers.Files,
		Commands:      s.Triggers.Commands,
		KernelModules: s.Triggers.KernelModules,
		Services:      s.Triggers.Services,
	}
}

// gate turns an optional gate into a predicate; nil keeps the plugin's
// default.
func gate(p *plugin.Plugin, g *config.Gate) *predicate.Predicate {
	if g == nil {
		return nil
	}
	return p.NewPredicate(
		predicate.WithKernelModules(g.KernelModules...),
		predicate.WithServices(g.Services...),
	)
}

func (d *Declarative) Setup(ctx context.Context, p *plugin.Plugin) error {
	if len(d.spec.Forbidden) > 0 {
		p.AddForbiddenPath(d.spec.Forbidden...)
	}

	for _, c := range d.spec.Copy {
		var opts []plugin.CopyOption
		if c.SizeLimitMB != nil {
			opts = append(opts, plugin.CopySizeLimitMB(*c.SizeLimitMB))
		}
		if !ptr.Deref(c.Tail, true) {
			opts = append(opts, plugin.CopyNoTail())
		}
		if pred := gate(p, c.When); pred != nil {
			opts = append(opts, plugin.CopyPredicate(pred))
		}
		p.AddCopySpec(ctx, c.Paths, opts...)
	}

	for _, c := range d.spec.Commands {
		p.AddCommandOutput(ctx, commandFromSpec(p, c))
	}

	for _, j := range d.spec.Journals {
		opts := plugin.JournalOptions{
			Units:       j.Units,
			Boot:        j.Boot,
			Since:       j.Since,
			Until:       j.Until,
			Lines:       j.Lines,
			Output:      j.Output,
			Identifier:  j.Identifier,
			Catalog:     ptr.Deref(j.Catalog, false),
			SizeLimitMB: ptr.Deref(j.SizeLimitMB, 0),
		}
		if j.Kernel {
			opts.Identifier = "kernel"
		}
		p.AddJournal(ctx, opts)
	}

	if len(d.spec.EnvVars) > 0 {
		p.AddEnvVar(d.spec.EnvVars...)
	}
	return nil
}

func commandFromSpec(p *plugin.Plugin, c config.CommandSpec) plugin.Command {
	var opts []plugin.CommandOption
	if c.SuggestFilename != "" {
		opts = append(opts, plugin.WithSuggestedFilename(c.SuggestFilename))
	}
	if c.RootSymlink != "" {
		opts = append(opts, plugin.WithRootSymlink(c.RootSymlink))
	}
	if c.TimeoutSeconds != nil {
		opts = append(opts, plugin.WithTimeout(time.Duration(*c.TimeoutSeconds)*time.Second))
	}
	if !ptr.Deref(c.Stderr, true) {
		opts = append(opts, plugin.WithoutStderr())
	}
	if !ptr.Deref(c.Chroot, true) {
		opts = append(opts, plugin.WithoutChroot())
	}
	if c.RunAt != "" {
		opts = append(opts, plugin.WithRunAt(c.RunAt))
	}
	if len(c.Env) > 0 {
		opts = append(opts, plugin.WithEnv(c.Env))
	}
	if c.Binary {
		opts = append(opts, plugin.AsBinary())
	}
	if c.SizeLimitMB != nil {
		opts = append(opts, plugin.WithSizeLimitMB(*c.SizeLimitMB))
	}
	if c.Subdir != "" {
		opts = append(opts, plugin.WithSubdir(c.Subdir))
	}
	if pred := gate(p, c.When); pred != nil {
		opts = append(opts, plugin.WithCommandPredicate(pred))
	}
	return plugin.NewCommand(c.Cmd, opts...)
}

// Postproc applies the scrub entries in order and logs how many
// substitutions each made.
func (d *Declarative) Postproc(_ context.Context, p *plugin.Plugin) error {
	for _, s := range d.spec.Scrub {
		var (
			n   int
			err error
		)
		switch {
		case s.Secrets:
			n, err = p.RedactSecrets(s.Command)
		case s.Command != "":
			n, err = p.SubstituteCommandOutput(s.Command, s.Pattern, s.Replacement)
		case s.File != "":
			n, err = p.SubstituteFile(s.File, s.Pattern, s.Replacement)
		default:
			n, err = p.SubstitutePathPattern(s.Path, s.Pattern, s.Replacement)
		}
		if err != nil {
			return err
		}
		p.Logger().Debug("scrubbed", "command", s.Command, "file", s.File, "path", s.Path, "replacements", n)
	}
	return nil
}
