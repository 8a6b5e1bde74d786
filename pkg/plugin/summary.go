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

// Summary describes one plugin's collection for the run manifest.
type Summary struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version,omitempty" yaml:"version,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	State       string            `json:"state" yaml:"state"`
	TimedOut    bool              `json:"timedOut,omitempty" yaml:"timedOut,omitempty"`
	Timeout     string            `json:"timeout" yaml:"timeout"`
	SCLs        []string          `json:"scls,omitempty" yaml:"scls,omitempty"`
	Copied      []CopiedFile      `json:"copied,omitempty" yaml:"copied,omitempty"`
	Commands    []ExecutedCommand `json:"commands,omitempty" yaml:"commands,omitempty"`
	Alerts      []string          `json:"alerts,omitempty" yaml:"alerts,omitempty"`
	CustomText  string            `json:"customText,omitempty" yaml:"customText,omitempty"`
	EnvVars     []string          `json:"envVars,omitempty" yaml:"envVars,omitempty"`
}

// Summary returns the plugin's collection summary.
func (p *Plugin) Summary() Summary {
	timeout := "none"
	if d := p.EffectiveTimeout(); d > 0 {
		timeout = d.String()
	}
	return Summary{
		Name:        p.meta.Name,
		Description: p.meta.Description,
		Version:     p.meta.Version,
		Tags:        p.meta.Tags.Names(),
		State:       p.state.String(),
		TimedOut:    p.timeout.IsSet(),
		Timeout:     timeout,
		SCLs:        p.SCLsMatched(),
		Copied:      p.CopiedFiles(),
		Commands:    p.ExecutedCommands(),
		Alerts:      append([]string(nil), p.alerts...),
		CustomText:  p.customText.String(),
		EnvVars:     p.EnvVars(),
	}
}
