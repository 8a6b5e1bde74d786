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

package policy

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/executor"
)

var (
	filePathKMod    = "/proc/modules"
	dirPathModules  = "/usr/lib/modules"
	fileNameBuiltin = "modules.builtin"
)

// Option configures a Linux policy.
type Option func(*Linux)

// WithSysroot sets the root of the collected filesystem. Package queries
// and builtin module lookups are resolved against it.
func WithSysroot(root string) Option {
	return func(l *Linux) {
		l.sysroot = root
	}
}

// WithRunner sets the command runner used for package and collection
// queries.
func WithRunner(r executor.Runner) Option {
	return func(l *Linux) {
		l.runner = r
	}
}

// WithPackageManager forces the package manager ("rpm", "dpkg" or "").
// By default it is detected from PATH.
func WithPackageManager(name string) Option {
	return func(l *Linux) {
		l.pkgManager = name
		l.pkgManagerSet = true
	}
}

func withDialer(d dialFunc) Option {
	return func(l *Linux) {
		l.dial = d
	}
}

// Linux is the Policy for systemd based Linux hosts.
type Linux struct {
	sysroot       string
	runner        executor.Runner
	pkgManager    string
	pkgManagerSet bool

	dial    dialFunc
	unitsMu sync.Mutex
	units   unitConn
	noUnits bool

	pkgOnce  sync.Once
	packages map[string]bool

	sclOnce sync.Once
	scls    []string
}

// NewLinux returns a Linux policy.
func NewLinux(opts ...Option) *Linux {
	l := &Linux{
		sysroot: "/",
		dial:    dialSystemd,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.runner == nil {
		l.runner = executor.New()
	}
	if !l.pkgManagerSet {
		l.pkgManager = detectPackageManager()
	}
	return l
}

// Close releases the systemd connection, if one was opened.
func (l *Linux) Close() {
	l.unitsMu.Lock()
	defer l.unitsMu.Unlock()
	if l.units != nil {
		l.units.Close()
		l.units = nil
	}
}

func detectPackageManager() string {
	for _, pm := range []string{"rpm", "dpkg"} {
		if _, err := exec.LookPath(pm); err == nil {
			return pm
		}
	}
	return ""
}

// IsInstalled implements Policy.
func (l *Linux) IsInstalled(ctx context.Context, pkg string) bool {
	l.pkgOnce.Do(func() {
		l.packages = l.loadPackages(ctx)
	})
	return l.packages[pkg]
}

func (l *Linux) loadPackages(ctx context.Context) map[string]bool {
	var query string
	switch l.pkgManager {
	case "rpm":
		query = `rpm -qa --queryformat '%{NAME}\n'`
		if l.sysroot != "/" {
			query = "rpm --root " + l.sysroot + ` -qa --queryformat '%{NAME}\n'`
		}
	case "dpkg":
		query = `dpkg-query -W -f='${Package}\n'`
		if l.sysroot != "/" {
			query = "dpkg-query --admindir=" + filepath.Join(l.sysroot, "var/lib/dpkg") + ` -W -f='${Package}\n'`
		}
	default:
		slog.Debug("no package manager detected")
		return map[string]bool{}
	}

	res, err := l.runner.Run(ctx, executor.Request{Command: query, Timeout: defaults.ProbeTimeout})
	if err != nil || res.Status != 0 {
		slog.Warn("failed to list installed packages", "manager", l.pkgManager, "error", err)
		return map[string]bool{}
	}

	pkgs := make(map[string]bool)
	for _, line := range strings.Split(string(res.Output), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			pkgs[name] = true
		}
	}
	slog.Debug("loaded installed packages", "manager", l.pkgManager, "count", len(pkgs))
	return pkgs
}

// VerifyCommand implements Policy.
func (l *Linux) VerifyCommand(pkgs []string) string {
	if len(pkgs) == 0 {
		return ""
	}
	switch l.pkgManager {
	case "rpm":
		return "rpm -V " + strings.Join(pkgs, " ")
	case "dpkg":
		return "dpkg --verify " + strings.Join(pkgs, " ")
	default:
		return ""
	}
}

// SoftwareCollections implements Policy.
func (l *Linux) SoftwareCollections(ctx context.Context) []string {
	l.sclOnce.Do(func() {
		res, err := l.runner.Run(ctx, executor.Request{Command: "scl -l", Timeout: defaults.ProbeTimeout})
		if err != nil || res.Status != 0 {
			return
		}
		for _, line := range strings.Split(string(res.Output), "\n") {
			if name := strings.TrimSpace(line); name != "" {
				l.scls = append(l.scls, name)
			}
		}
	})
	return append([]string(nil), l.scls...)
}

// DefaultSCLPrefix implements Policy.
func (l *Linux) DefaultSCLPrefix() string {
	return DefaultSCLPrefix
}
