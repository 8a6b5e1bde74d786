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
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/plugin"
	"github.com/NVIDIA/diagpack/pkg/policy"
)

type fakePolicy struct {
	modules  []string
	services map[string]bool
}

var _ policy.Policy = (*fakePolicy)(nil)

func (f *fakePolicy) IsInstalled(context.Context, string) bool {
	return false
}

func (f *fakePolicy) IsService(_ context.Context, name string) bool {
	return f.services[name]
}

func (f *fakePolicy) ServiceEnabled(_ context.Context, name string) bool {
	return f.services[name]
}

func (f *fakePolicy) ServiceDisabled(_ context.Context, name string) bool {
	return !f.services[name]
}

func (f *fakePolicy) ServiceRunning(_ context.Context, name string) bool {
	return f.services[name]
}

func (f *fakePolicy) ServiceStatus(_ context.Context, name string) string {
	if f.services[name] {
		return "active"
	}
	return policy.ServiceMissing
}

func (f *fakePolicy) KernelModules(context.Context) ([]string, error) {
	return f.modules, nil
}

func (f *fakePolicy) ModuleLoaded(_ context.Context, name string) bool {
	return slices.Contains(f.modules, name)
}

func (f *fakePolicy) SoftwareCollections(context.Context) []string {
	return nil
}

func (f *fakePolicy) DefaultSCLPrefix() string {
	return policy.DefaultSCLPrefix
}

func (f *fakePolicy) VerifyCommand(pkgs []string) string {
	return "rpm -V " + strings.Join(pkgs, " ")
}

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	output   map[string]string
}

func (f *fakeRunner) Run(_ context.Context, req executor.Request) (*executor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, req.Command)
	out, ok := f.output[req.Command]
	if !ok {
		out = "output of " + req.Command
	}
	return &executor.Result{Output: []byte(out)}, nil
}

type env struct {
	plugin  *plugin.Plugin
	archive *archive.Directory
	runner  *fakeRunner
	sysroot string
}

func newEnv(t *testing.T, def plugin.Definition, pol *fakePolicy, mutate func(*config.Config)) *env {
	t.Helper()
	sysroot, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Sysroot = sysroot
	if mutate != nil {
		mutate(cfg)
	}
	if pol == nil {
		pol = &fakePolicy{}
	}

	a, err := archive.NewDirectory(t.TempDir(), "plugins-test")
	require.NoError(t, err)

	e := &env{archive: a, runner: &fakeRunner{output: map[string]string{}}, sysroot: sysroot}
	p, err := plugin.New(def, cfg, plugin.Deps{Archive: a, Policy: pol, Runner: e.runner})
	require.NoError(t, err)
	e.plugin = p
	return e
}

func (e *env) writeFile(t *testing.T, path, content string) {
	t.Helper()
	host := filepath.Join(e.sysroot, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(host), 0o755))
	require.NoError(t, os.WriteFile(host, []byte(content), 0o644))
}

func (e *env) commands() []string {
	var out []string
	for _, c := range e.plugin.QueuedCommands() {
		out = append(out, c.Cmd)
	}
	return out
}

func (e *env) command(t *testing.T, cmd string) plugin.Command {
	t.Helper()
	for _, c := range e.plugin.QueuedCommands() {
		if c.Cmd == cmd {
			return c
		}
	}
	t.Fatalf("command %q not queued", cmd)
	return plugin.Command{}
}

// commandOutput returns the archived output of the executed command exe.
func (e *env) commandOutput(t *testing.T, exe string) string {
	t.Helper()
	for _, ec := range e.plugin.ExecutedCommands() {
		if ec.Exe == exe {
			b, err := os.ReadFile(e.archive.ArchivePath(filepath.Join(archive.CommandsDir, ec.File)))
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("command %q not executed", exe)
	return ""
}

func (e *env) run(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.plugin.Setup(ctx))
	require.NoError(t, e.plugin.Collect(ctx))
	require.NoError(t, e.plugin.Postproc(ctx))
}

func TestBuiltins(t *testing.T) {
	var names []string
	for _, d := range Builtins() {
		names = append(names, d.Metadata().Name)
	}
	assert.Equal(t, []string{"kernel", "logs", "systemd"}, names)
}

func TestDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		specs   []config.PluginSpec
		want    int
		wantErr bool
	}{
		{name: "builtins only", want: 3},
		{
			name:  "declarative appended",
			specs: []config.PluginSpec{{Name: "nvidia", Commands: []config.CommandSpec{{Cmd: "nvidia-smi"}}}},
			want:  4,
		},
		{
			name:    "builtin name reused",
			specs:   []config.PluginSpec{{Name: "kernel", Commands: []config.CommandSpec{{Cmd: "uname"}}}},
			wantErr: true,
		},
		{
			name: "duplicate declarative",
			specs: []config.PluginSpec{
				{Name: "a", Commands: []config.CommandSpec{{Cmd: "true"}}},
				{Name: "a", Commands: []config.CommandSpec{{Cmd: "false"}}},
			},
			wantErr: true,
		},
		{
			name:    "unknown tag",
			specs:   []config.PluginSpec{{Name: "b", Tags: []string{"bogus"}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := Definitions(tt.specs...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, defs, tt.want)
		})
	}
}

func TestKernelSetup(t *testing.T) {
	e := newEnv(t, Kernel{}, &fakePolicy{modules: []string{"nvidia", "ext4", "nvidia"}}, nil)
	e.writeFile(t, "/proc/cmdline", "BOOT_IMAGE=/vmlinuz root=/dev/sda1\n")
	require.NoError(t, e.plugin.Setup(context.Background()))

	cmds := e.commands()
	assert.Contains(t, cmds, "uname -a")
	assert.Contains(t, cmds, "sysctl -a")
	modinfo := e.command(t, "modinfo ext4 nvidia")
	assert.Equal(t, "modinfo_ALL_MODULES", modinfo.SuggestFilename)
	assert.Equal(t, "lsmod", e.command(t, "lsmod").RootSymlink)

	assert.Contains(t, e.plugin.QueuedPaths(), filepath.Join(e.sysroot, "proc/cmdline"))
	assert.Contains(t, e.plugin.ForbiddenPaths(), filepath.Join(e.sysroot, "sys/kernel/debug/tracing/trace"))
	assert.Contains(t, e.plugin.ForbiddenPaths(), filepath.Join(e.sysroot, "proc/kallsyms"))
}

func TestKernelOptions(t *testing.T) {
	e := newEnv(t, Kernel{}, nil, nil)
	e.writeFile(t, "/proc/timer_list", "Timer List Version: v0.9\n")
	require.NoError(t, e.plugin.SetOption(kernelOptionTrace, "true"))
	require.NoError(t, e.plugin.SetOption(kernelOptionTimerList, true))
	require.NoError(t, e.plugin.Setup(context.Background()))

	assert.NotContains(t, e.plugin.ForbiddenPaths(), filepath.Join(e.sysroot, "sys/kernel/debug/tracing/trace"))
	assert.Contains(t, e.plugin.QueuedPaths(), filepath.Join(e.sysroot, "proc/timer_list"))
	for _, c := range e.commands() {
		assert.False(t, strings.HasPrefix(c, "modinfo"), "no modules means no modinfo: %s", c)
	}
}

func TestSystemd(t *testing.T) {
	e := newEnv(t, Systemd{}, nil, func(c *config.Config) { c.Verify = true })
	e.runner.output["systemctl show-environment"] = "LANG=C\nDB_PASSWORD=hunter2\nAPI_TOKEN=abc123\n"
	e.run(t)

	assert.Contains(t, e.runner.commands, "journalctl --verify")
	assert.NotContains(t, e.runner.commands, "systemd-analyze plot")
	assert.Equal(t, "LANG=C\nDB_PASSWORD=********\nAPI_TOKEN=********\n",
		e.commandOutput(t, "systemctl show-environment"))
}

func TestSystemdPlot(t *testing.T) {
	e := newEnv(t, Systemd{}, nil, nil)
	require.NoError(t, e.plugin.SetOption("plot", true))
	require.NoError(t, e.plugin.Setup(context.Background()))

	assert.Equal(t, "systemd-analyze_plot.svg", e.command(t, "systemd-analyze plot").SuggestFilename)
	assert.NotContains(t, e.commands(), "journalctl --verify")
}

func TestLogsSetup(t *testing.T) {
	e := newEnv(t, Logs{}, nil, nil)
	e.writeFile(t, "/etc/rsyslog.conf", "# comment\nkern.*  -/var/log/custom-kern.log\n*.info /var/log/messages\n")
	e.writeFile(t, "/etc/rsyslog.d/50-app.conf", "local0.* /var/log/app.log\n")
	e.writeFile(t, "/var/log/custom-kern.log", "kernel line\n")
	e.writeFile(t, "/var/log/app.log", "app line\n")
	require.NoError(t, e.plugin.Setup(context.Background()))

	paths := e.plugin.QueuedPaths()
	assert.Contains(t, paths, filepath.Join(e.sysroot, "etc/rsyslog.conf"))
	assert.Contains(t, paths, filepath.Join(e.sysroot, "var/log/custom-kern.log"))
	assert.Contains(t, paths, filepath.Join(e.sysroot, "var/log/app.log"))

	cmds := e.commands()
	assert.Contains(t, cmds, "journalctl --disk-usage")
	assert.Contains(t, cmds, plugin.JournalCommand(plugin.JournalOptions{Boot: plugin.BootThis, Catalog: true, Since: "-3days"}))
	assert.Contains(t, cmds, plugin.JournalCommand(plugin.JournalOptions{Boot: plugin.BootLast, Lines: 100000}))
	assert.Contains(t, cmds, plugin.JournalCommand(plugin.JournalOptions{Identifier: "kernel", Boot: plugin.BootThis}))
}

func TestLogsAllLogs(t *testing.T) {
	e := newEnv(t, Logs{}, nil, func(c *config.Config) { c.AllLogs = true })
	e.writeFile(t, "/var/log/journal/abc/system.journal", "journal")
	require.NoError(t, e.plugin.Setup(context.Background()))

	assert.Contains(t, e.commands(), plugin.JournalCommand(plugin.JournalOptions{Boot: plugin.BootThis, Catalog: true}))
	assert.Contains(t, e.plugin.QueuedPaths(), filepath.Join(e.sysroot, "var/log/journal/abc"))
	for _, c := range e.plugin.QueuedCommands() {
		assert.Zero(t, c.SizeLimit, c.Cmd)
	}
}

func TestLogsInvalidDays(t *testing.T) {
	e := newEnv(t, Logs{}, nil, nil)
	require.Error(t, e.plugin.SetOption(logsOptionDays, "three"))
}
