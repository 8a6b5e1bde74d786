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

package runner

import (
	"context"
	"fmt"

	"github.com/NVIDIA/diagpack/pkg/header"
	"github.com/NVIDIA/diagpack/pkg/plugin"
)

// PluginList is the document produced by the list command.
type PluginList struct {
	header.Header `json:",inline" yaml:",inline"`

	Plugins []ListEntry `json:"plugins" yaml:"plugins"`
}

// ListEntry describes one known plugin and whether it would run.
type ListEntry struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Enabled     bool         `json:"enabled" yaml:"enabled"`
	Reason      string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	Options     []OptionInfo `json:"options,omitempty" yaml:"options,omitempty"`
}

// OptionInfo describes a plugin option and its effective value.
type OptionInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Speed       string `json:"speed,omitempty" yaml:"speed,omitempty"`
	Value       string `json:"value" yaml:"value"`
}

// List evaluates plugin selection without collecting anything.
func (r *Runner) List(ctx context.Context) (*PluginList, error) {
	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, err
	}

	list := &PluginList{}
	list.Init(header.KindPluginList, r.version)

	for _, p := range plan.Selected {
		list.Plugins = append(list.Plugins, entry(p))
	}
	for _, s := range plan.Skipped {
		list.Plugins = append(list.Plugins, ListEntry{Name: s.Name, Reason: s.Reason})
	}
	for _, f := range plan.Failures {
		list.Plugins = append(list.Plugins, ListEntry{Name: f.Plugin, Reason: f.Error})
	}

	// Skipped entries only carry the name; fill in the rest from the
	// definitions.
	meta := make(map[string]plugin.Metadata, len(r.defs))
	for _, d := range r.defs {
		meta[d.Metadata().Name] = d.Metadata()
	}
	for i := range list.Plugins {
		e := &list.Plugins[i]
		if e.Enabled {
			continue
		}
		m := meta[e.Name]
		e.Description = m.Description
		e.Tags = m.Tags.Names()
	}
	return list, nil
}

func entry(p *plugin.Plugin) ListEntry {
	m := p.Metadata()
	e := ListEntry{
		Name:        m.Name,
		Description: m.Description,
		Tags:        m.Tags.Names(),
		Enabled:     true,
	}
	for _, s := range p.Options().Specs() {
		e.Options = append(e.Options, OptionInfo{
			Name:        s.Name,
			Description: s.Description,
			Speed:       s.Speed,
			Value:       fmt.Sprint(p.Option(s.Name)),
		})
	}
	return e
}
