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
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/header"
	"github.com/NVIDIA/diagpack/pkg/plugin"
	"github.com/NVIDIA/diagpack/pkg/policy"
)

type fakePolicy struct {
	installed map[string]bool
}

func (f *fakePolicy) IsInstalled(_ context.Context, pkg string) bool {
	return f.installed[pkg]
}

func (f *fakePolicy) IsService(context.Context, string) bool {
	return false
}

func (f *fakePolicy) ServiceEnabled(context.Context, string) bool {
	return false
}

func (f *fakePolicy) ServiceDisabled(context.Context, string) bool {
	return true
}

func (f *fakePolicy) ServiceRunning(context.Context, string) bool {
	return false
}

func (f *fakePolicy) ServiceStatus(context.Context, string) string {
	return policy.ServiceMissing
}

func (f *fakePolicy) KernelModules(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakePolicy) ModuleLoaded(context.Context, string) bool {
	return false
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

type fakeExec struct {
	mu       sync.Mutex
	commands []string
	handle   func(ctx context.Context, req executor.Request) (*executor.Result, error)
}

func (f *fakeExec) Run(ctx context.Context, req executor.Request) (*executor.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, req.Command)
	f.mu.Unlock()
	if f.handle != nil {
		return f.handle(ctx, req)
	}
	return &executor.Result{Output: []byte(req.Command + "\n")}, nil
}

func (f *fakeExec) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type def struct {
	meta  plugin.Metadata
	setup func(ctx context.Context, p *plugin.Plugin) error
	post  func(ctx context.Context, p *plugin.Plugin) error
}

func (d *def) Metadata() plugin.Metadata { return d.meta }

func (d *def) Setup(ctx context.Context, p *plugin.Plugin) error {
	if d.setup == nil {
		return nil
	}
	return d.setup(ctx, p)
}

func (d *def) Postproc(ctx context.Context, p *plugin.Plugin) error {
	if d.post == nil {
		return nil
	}
	return d.post(ctx, p)
}

type env struct {
	cfg  *config.Config
	arch *archive.Directory
	exec *fakeExec
	pol  *fakePolicy
}

func newEnv(t *testing.T) *env {
	t.Helper()
	arch, err := archive.NewDirectory(t.TempDir(), "diag")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Sysroot = t.TempDir()
	cfg.Chroot = config.ChrootNever
	return &env{cfg: cfg, arch: arch, exec: &fakeExec{}, pol: &fakePolicy{}}
}

func (e *env) runner(t *testing.T, defs ...plugin.Definition) *Runner {
	t.Helper()
	r, err := New(e.cfg, e.arch, e.pol, e.exec, defs, WithVersion("v0.1.0"))
	require.NoError(t, err)
	r.geteuid = func() int { return 1000 }
	r.hostname = func() (string, error) { return "node-1", nil }
	r.lookupEnv = func(name string) (string, bool) {
		if name == "HTTP_PROXY" {
			return "http://proxy:3128", true
		}
		return "", false
	}
	return r
}

func readArchived(t *testing.T, a archive.Archive, dst string) string {
	t.Helper()
	rc, err := a.OpenFile(dst)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func names(ps []*plugin.Plugin) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return out
}

func TestNew(t *testing.T) {
	e := newEnv(t)

	_, err := New(e.cfg, nil, e.pol, e.exec, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))

	dup := []plugin.Definition{
		&def{meta: plugin.Metadata{Name: "a"}},
		&def{meta: plugin.Metadata{Name: "a"}},
	}
	_, err = New(e.cfg, e.arch, e.pol, e.exec, dup)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"zero threads", func(c *config.Config) { c.Threads = 0 }},
		{"negative threads", func(c *config.Config) { c.Threads = -2 }},
		{"bad chroot mode", func(c *config.Config) { c.Chroot = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			tt.mutate(e.cfg)
			_, err := New(e.cfg, e.arch, e.pol, e.exec, nil)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
		})
	}
}

func TestPlan(t *testing.T) {
	defs := []plugin.Definition{
		&def{meta: plugin.Metadata{Name: "always"}},
		&def{meta: plugin.Metadata{Name: "optional", Optional: true}},
		&def{meta: plugin.Metadata{Name: "inactive", Packages: []string{"nvidia-driver"}}},
		&def{meta: plugin.Metadata{Name: "installed", Packages: []string{"kernel"}}},
		&def{meta: plugin.Metadata{Name: "root", RequiresRoot: true}},
		&def{meta: plugin.Metadata{Name: "skipme"}},
	}

	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		selected []string
		reasons  map[string]string
	}{
		{
			name:     "defaults",
			mutate:   func(c *config.Config) { c.SkipPlugins = []string{"skipme"} },
			selected: []string{"always", "installed"},
			reasons: map[string]string{
				"optional": ReasonOptional,
				"inactive": ReasonInactive,
				"root":     ReasonRequiresRoot,
				"skipme":   ReasonSkipped,
			},
		},
		{
			name:     "enable list overrides triggers and optional",
			mutate:   func(c *config.Config) { c.EnablePlugins = []string{"optional", "inactive", "unknown"} },
			selected: []string{"always", "inactive", "installed", "optional", "skipme"},
		},
		{
			name:     "only list",
			mutate:   func(c *config.Config) { c.OnlyPlugins = []string{"inactive"} },
			selected: []string{"inactive"},
			reasons: map[string]string{
				"always":   ReasonNotSpecified,
				"optional": ReasonNotSpecified,
			},
		},
		{
			name: "skip wins over only",
			mutate: func(c *config.Config) {
				c.OnlyPlugins = []string{"always"}
				c.SkipPlugins = []string{"always"}
			},
			selected: nil,
			reasons:  map[string]string{"always": ReasonSkipped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.pol.installed = map[string]bool{"kernel": true}
			tt.mutate(e.cfg)

			plan, err := e.runner(t, defs...).Plan(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.selected, nilIfEmpty(names(plan.Selected)))

			got := make(map[string]string)
			for _, s := range plan.Skipped {
				got[s.Name] = s.Reason
			}
			for name, reason := range tt.reasons {
				assert.Equal(t, reason, got[name], name)
			}
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestPlanOptions(t *testing.T) {
	e := newEnv(t)
	e.cfg.SetPluginOption("opts", "depth", "3")
	e.cfg.SetPluginOption("bad", "nope", "1")

	defs := []plugin.Definition{
		&def{meta: plugin.Metadata{Name: "opts", Options: []plugin.OptionSpec{{Name: "depth", Default: 1}}}},
		&def{meta: plugin.Metadata{Name: "bad"}},
	}
	plan, err := e.runner(t, defs...).Plan(context.Background())
	require.NoError(t, err)

	require.Len(t, plan.Selected, 1)
	assert.Equal(t, 3, plan.Selected[0].Option("depth"))

	require.Len(t, plan.Failures, 1)
	assert.Equal(t, "bad", plan.Failures[0].Plugin)
	assert.Equal(t, PhaseOptions, plan.Failures[0].Phase)
}

func TestRun(t *testing.T) {
	e := newEnv(t)
	e.cfg.Verify = true
	e.cfg.Label = "case-42"
	require.NoError(t, os.MkdirAll(filepath.Join(e.cfg.Sysroot, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.cfg.Sysroot, "etc", "hostname"), []byte("node-1\n"), 0o644))

	var postRan bool
	defs := []plugin.Definition{
		&def{
			meta: plugin.Metadata{Name: "host", Packages: []string{"kernel"}},
			setup: func(ctx context.Context, p *plugin.Plugin) error {
				p.AddCopySpec(ctx, []string{"/etc/hostname"})
				p.AddCommandOutput(ctx, plugin.NewCommand("uname -a"))
				p.AddStringAsFile(ctx, "hello", "note", nil)
				p.AddEnvVar("http_proxy")
				return nil
			},
			post: func(_ context.Context, p *plugin.Plugin) error {
				postRan = true
				return nil
			},
		},
		&def{
			meta: plugin.Metadata{Name: "broken"},
			setup: func(context.Context, *plugin.Plugin) error {
				return errors.New(errors.ErrCodeInternal, "boom")
			},
		},
	}
	e.pol.installed = map[string]bool{"kernel": true}

	m, err := e.runner(t, defs...).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, postRan)
	assert.Equal(t, header.KindManifest, m.Kind)
	assert.Equal(t, "v0.1.0", m.Metadata["version"])
	assert.Equal(t, "case-42", m.Label)
	assert.Equal(t, "node-1", m.Host)
	assert.Empty(t, m.TimedOut)

	require.Len(t, m.Failures, 1)
	assert.Equal(t, "broken", m.Failures[0].Plugin)
	assert.Equal(t, PhaseSetup, m.Failures[0].Phase)
	assert.Equal(t, errors.ErrCodeInternal, m.Failures[0].Code)

	require.Len(t, m.Plugins, 1)
	s := m.Plugins[0]
	assert.Equal(t, "host", s.Name)
	assert.Equal(t, "done", s.State)
	require.Len(t, s.Copied, 1)
	assert.Equal(t, "/etc/hostname", s.Copied[0].DstPath)

	cmds := make([]string, 0, len(s.Commands))
	for _, c := range s.Commands {
		cmds = append(cmds, c.Exe)
	}
	assert.Equal(t, []string{"uname -a", "rpm -V kernel"}, cmds)

	assert.Equal(t, "node-1\n", readArchived(t, e.arch, "/etc/hostname"))
	assert.Equal(t, "uname -a\n", readArchived(t, e.arch, "sos_commands/host/uname_-a"))
	assert.Equal(t, "hello", readArchived(t, e.arch, "sos_strings/host/note"))
	assert.Equal(t, "HTTP_PROXY=http://proxy:3128\n", readArchived(t, e.arch, "environment"))

	var stored Manifest
	require.NoError(t, json.Unmarshal([]byte(readArchived(t, e.arch, ManifestPath())), &stored))
	assert.Equal(t, header.KindManifest, stored.Kind)
	assert.Len(t, stored.Plugins, 1)
}

func TestRunTimeout(t *testing.T) {
	e := newEnv(t)
	e.cfg.PluginTimeout = 1

	e.exec.handle = func(ctx context.Context, req executor.Request) (*executor.Result, error) {
		if req.Command == "sleep forever" {
			<-ctx.Done()
			return &executor.Result{Status: executor.StatusTimeout}, nil
		}
		return &executor.Result{Output: []byte("ok")}, nil
	}

	var scrubbed bool
	defs := []plugin.Definition{
		&def{
			meta: plugin.Metadata{Name: "slow"},
			setup: func(ctx context.Context, p *plugin.Plugin) error {
				p.AddCommandOutput(ctx, plugin.NewCommand("sleep forever"))
				p.AddCommandOutput(ctx, plugin.NewCommand("never run"))
				return nil
			},
			post: func(context.Context, *plugin.Plugin) error {
				scrubbed = true
				return nil
			},
		},
		&def{
			meta: plugin.Metadata{Name: "fast"},
			setup: func(ctx context.Context, p *plugin.Plugin) error {
				p.AddCommandOutput(ctx, plugin.NewCommand("true"))
				return nil
			},
		},
	}

	start := time.Now()
	m, err := e.runner(t, defs...).Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 30*time.Second)

	assert.Equal(t, []string{"slow"}, m.TimedOut)
	assert.True(t, scrubbed)
	assert.False(t, slices.Contains(e.exec.ran(), "never run"))

	for _, s := range m.Plugins {
		switch s.Name {
		case "slow":
			assert.True(t, s.TimedOut)
			assert.Empty(t, s.Commands)
		case "fast":
			assert.False(t, s.TimedOut)
			assert.Len(t, s.Commands, 1)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.runner(t, &def{meta: plugin.Metadata{Name: "a"}}).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTimeout))
}

func TestList(t *testing.T) {
	e := newEnv(t)
	defs := []plugin.Definition{
		&def{meta: plugin.Metadata{Name: "a", Description: "always on"}},
		&def{meta: plugin.Metadata{Name: "b", Description: "opt in", Optional: true}},
	}

	list, err := e.runner(t, defs...).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, header.KindPluginList, list.Kind)
	require.Len(t, list.Plugins, 2)

	a, b := list.Plugins[0], list.Plugins[1]
	assert.Equal(t, "a", a.Name)
	assert.True(t, a.Enabled)
	require.NotEmpty(t, a.Options)
	assert.Equal(t, plugin.OptionTimeout, a.Options[len(a.Options)-1].Name)
	assert.Equal(t, "-1", a.Options[len(a.Options)-1].Value)

	assert.Equal(t, "b", b.Name)
	assert.False(t, b.Enabled)
	assert.Equal(t, ReasonOptional, b.Reason)
	assert.Equal(t, "opt in", b.Description)
}

func TestWriteMetrics(t *testing.T) {
	e := newEnv(t)
	_, err := e.runner(t, &def{meta: plugin.Metadata{Name: "a"}}).Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "diagpack.prom")
	require.NoError(t, WriteMetrics(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "diagpack_plugins_selected")
	assert.Contains(t, string(b), `diagpack_plugin_runs_total{plugin="a",status="ok"}`)
}

func TestCommandResult(t *testing.T) {
	assert.Equal(t, "ok", commandResult(0))
	assert.Equal(t, "timeout", commandResult(124))
	assert.Equal(t, "missing", commandResult(127))
	assert.Equal(t, "error", commandResult(1))
}

func TestPlanPlatform(t *testing.T) {
	e := newEnv(t)
	defs := []plugin.Definition{
		&def{meta: plugin.Metadata{Name: "generic"}},
		&def{meta: plugin.Metadata{Name: "apt", Tags: plugin.Tags(plugin.TagDebian)}},
		&def{meta: plugin.Metadata{Name: "yum", Tags: plugin.Tags(plugin.TagRedHat)}},
	}

	r, err := New(e.cfg, e.arch, e.pol, e.exec, defs, WithPlatform(plugin.TagUbuntu))
	require.NoError(t, err)

	plan, err := r.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"apt", "generic"}, names(plan.Selected))
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, Skipped{Name: "yum", Reason: ReasonPlatform}, plan.Skipped[0])
}
