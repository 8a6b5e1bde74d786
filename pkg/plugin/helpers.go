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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/NVIDIA/diagpack/pkg/collector/file"
	"github.com/NVIDIA/diagpack/pkg/predicate"
)

var (
	// procRoot and filePathModules are variables so tests can point them
	// at fixtures.
	procRoot        = "/proc"
	filePathModules = "/proc/modules"
)

// AddStringAsFile queues content to be archived under the plugin's
// strings directory as filename.
func (p *Plugin) AddStringAsFile(ctx context.Context, content, filename string, pred *predicate.Predicate) {
	if !p.TestPredicate(ctx, false, pred) {
		p.log.Info("skipped string due to predicate",
			"file", filename, "predicate", p.Predicate(false, pred).String())
		return
	}
	p.strs = append(p.strs, stringEntry{content: content, name: filename})
	p.log.Debug("added string as file", "file", filename, "bytes", len(content))
}

// AddUdevInfo queues "udevadm info" for each device, with the attribute
// walk when attrs is set.
func (p *Plugin) AddUdevInfo(ctx context.Context, devices []string, attrs bool) {
	udev := "udevadm info"
	if attrs {
		udev += " -a"
	}
	for _, dev := range devices {
		p.log.Debug("collecting udev info", "device", dev)
		p.AddCommandOutput(ctx, NewCommand(udev+" "+dev))
	}
}

// AddEnvVar requests environment variables for the environment report.
// Each name is recorded as given, upper cased and lower cased.
func (p *Plugin) AddEnvVar(names ...string) {
	for _, n := range names {
		for _, v := range []string{n, strings.ToUpper(n), strings.ToLower(n)} {
			if !slices.Contains(p.envVars, v) {
				p.envVars = append(p.envVars, v)
			}
		}
	}
}

// EnvVars returns the requested environment variable names.
func (p *Plugin) EnvVars() []string {
	return append([]string(nil), p.envVars...)
}

// AddAlert records a message for the run summary.
func (p *Plugin) AddAlert(alert string) {
	p.alerts = append(p.alerts, alert)
}

// AddCustomText appends free text to the plugin summary.
func (p *Plugin) AddCustomText(text string) {
	p.customText.WriteString(text)
}

// IsModuleLoaded reports whether the kernel module is listed in
// /proc/modules.
func (p *Plugin) IsModuleLoaded(name string) bool {
	re := regexp.MustCompile("^" + regexp.QuoteMeta(name) + " ")
	lines, err := file.Grep(re, filePathModules)
	if err != nil {
		p.log.Debug("failed to read module list", "error", err)
		return false
	}
	return len(lines) > 0
}

// ProcessPIDs returns the IDs of processes whose command line contains
// process.
func (p *Plugin) ProcessPIDs(process string) []string {
	paths, err := filepath.Glob(filepath.Join(procRoot, "[0-9]*", "cmdline"))
	if err != nil {
		return nil
	}
	var pids []string
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cmdline := string(bytes.TrimSpace(bytes.ReplaceAll(b, []byte{0}, []byte{' '})))
		if strings.Contains(cmdline, process) {
			pids = append(pids, filepath.Base(filepath.Dir(path)))
		}
	}
	return pids
}

// CheckProcessByName reports whether any process command line contains
// process.
func (p *Plugin) CheckProcessByName(process string) bool {
	return len(p.ProcessPIDs(process)) > 0
}

// FileGrep returns the lines of the files matching re. Unreadable files
// are skipped.
func (p *Plugin) FileGrep(re *regexp.Regexp, paths ...string) []string {
	var out []string
	for _, path := range paths {
		lines, err := file.Grep(re, path)
		if err != nil {
			p.log.Debug("failed to grep file", "path", path, "error", err)
			continue
		}
		out = append(out, lines...)
	}
	return out
}

// RegexFindAll returns every match of expr in the file at path, with
// multi-line anchors. A file that cannot be read yields no matches.
func (p *Plugin) RegexFindAll(expr, path string) ([]string, error) {
	re, err := regexp.Compile("(?m)" + expr)
	if err != nil {
		return nil, err
	}
	matches, err := file.FindAll(re, path)
	if err != nil {
		p.log.Debug("failed to read file", "path", path, "error", err)
		return nil, nil
	}
	return matches, nil
}
