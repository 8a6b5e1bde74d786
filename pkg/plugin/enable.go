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
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sys/unix"
)

// binDirs are searched for trigger commands inside a sysroot.
var binDirs = []string{"/usr/local/sbin", "/usr/local/bin", "/usr/sbin", "/usr/bin", "/sbin", "/bin"}

type triggers struct {
	files, packages, commands, kmods, services []string
}

func (t triggers) empty() bool {
	return len(t.files)+len(t.packages)+len(t.commands)+len(t.kmods)+len(t.services) == 0
}

func (t triggers) expand(scl string) triggers {
	e := func(list []string) []string {
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = SCLExpand(s, scl)
		}
		return out
	}
	return triggers{e(t.files), e(t.packages), e(t.commands), e(t.kmods), e(t.services)}
}

func (t triggers) templated() bool {
	for _, list := range [][]string{t.files, t.packages, t.commands, t.kmods, t.services} {
		for _, s := range list {
			if strings.Contains(s, SCLPlaceholder) {
				return true
			}
		}
	}
	return false
}

// DefaultEnabled reports whether the plugin runs without being named
// explicitly.
func (p *Plugin) DefaultEnabled() bool {
	return !p.meta.Optional
}

// CheckEnabled reports whether the plugin applies to the host. Plugins
// without triggers always apply; otherwise any one matching trigger is
// enough. SCL plugins are checked once per installed software collection
// and remember the collections that matched.
func (p *Plugin) CheckEnabled(ctx context.Context) bool {
	if en, ok := p.def.(Enabler); ok {
		return en.CheckEnabled(ctx, p)
	}

	t := triggers{
		files:    p.meta.Files,
		packages: p.meta.Packages,
		commands: p.meta.Commands,
		kmods:    p.meta.KernelModules,
		services: p.meta.Services,
	}
	if t.empty() {
		return true
	}

	if p.meta.Tags.Has(TagSCL) && t.templated() {
		p.scls = nil
		for _, scl := range p.policy.SoftwareCollections(ctx) {
			if p.checkTriggers(ctx, t.expand(scl)) {
				p.scls = append(p.scls, scl)
			}
		}
		p.log.Debug("matched software collections", "scls", p.scls)
		return len(p.scls) > 0
	}
	return p.checkTriggers(ctx, t)
}

func (p *Plugin) checkTriggers(ctx context.Context, t triggers) bool {
	for _, f := range t.files {
		if _, err := os.Stat(p.JoinSysroot(f)); err == nil {
			return true
		}
	}
	for _, pkg := range t.packages {
		if p.policy.IsInstalled(ctx, pkg) {
			return true
		}
	}
	for _, c := range t.commands {
		if p.isExecutable(c) {
			return true
		}
	}
	if len(t.kmods) > 0 {
		loaded, err := p.policy.KernelModules(ctx)
		if err != nil {
			p.log.Debug("failed to list kernel modules", "error", err)
		}
		for _, m := range t.kmods {
			if slices.Contains(loaded, m) {
				return true
			}
		}
	}
	for _, s := range t.services {
		if p.policy.IsService(ctx, s) {
			return true
		}
	}
	return false
}

func (p *Plugin) isExecutable(cmd string) bool {
	if p.sysroot == "/" {
		_, err := exec.LookPath(cmd)
		return err == nil
	}
	candidates := []string{p.JoinSysroot(cmd)}
	if !strings.Contains(cmd, "/") {
		candidates = candidates[:0]
		for _, d := range binDirs {
			candidates = append(candidates, p.JoinSysroot(filepath.Join(d, cmd)))
		}
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() && unix.Access(c, unix.X_OK) == nil {
			return true
		}
	}
	return false
}
