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
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/executor"
	"github.com/NVIDIA/diagpack/pkg/header"
	"github.com/NVIDIA/diagpack/pkg/plugin"
	"github.com/NVIDIA/diagpack/pkg/policy"
	"github.com/NVIDIA/diagpack/pkg/predicate"
	"github.com/NVIDIA/diagpack/pkg/serializer"
)

// Skip reasons reported in the manifest and plugin listings.
const (
	ReasonSkipped      = "skipped on request"
	ReasonNotSpecified = "not in the only list"
	ReasonOptional     = "optional, not enabled"
	ReasonInactive     = "inactive on this host"
	ReasonRequiresRoot = "requires root"
	ReasonPlatform     = "not supported on this platform"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger passed to plugins.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithVersion sets the tool version recorded in the manifest.
func WithVersion(v string) Option {
	return func(r *Runner) {
		r.version = v
	}
}

// WithPlatform restricts platform tagged plugins to those supporting
// platform. Zero disables the check.
func WithPlatform(platform plugin.Tag) Option {
	return func(r *Runner) {
		r.platform = platform
	}
}

// Runner supervises plugins for one collection run: it selects them,
// runs Setup sequentially, Collect concurrently under per-plugin
// timeouts, and Postproc sequentially.
type Runner struct {
	cfg     *config.Config
	archive archive.Archive
	policy  policy.Policy
	exec    executor.Runner
	defs    []plugin.Definition
	eval    *predicate.Evaluator

	log      *slog.Logger
	version  string
	platform plugin.Tag

	// replaced in tests
	now       func() time.Time
	geteuid   func() int
	lookupEnv func(string) (string, bool)
	hostname  func() (string, error)
}

// New creates a Runner. Plugin names must be unique.
func New(cfg *config.Config, a archive.Archive, pol policy.Policy, exec executor.Runner, defs []plugin.Definition, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if a == nil || pol == nil || exec == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "archive, policy and executor are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		name := d.Metadata().Name
		if seen[name] {
			return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "duplicate plugin name",
				map[string]any{"plugin": name})
		}
		seen[name] = true
	}

	r := &Runner{
		cfg:       cfg,
		archive:   a,
		policy:    pol,
		exec:      exec,
		defs:      defs,
		eval:      predicate.NewEvaluator(pol, cfg.DryRun),
		log:       slog.Default(),
		version:   "dev",
		now:       time.Now,
		geteuid:   os.Geteuid,
		lookupEnv: os.LookupEnv,
		hostname:  os.Hostname,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Plan is the outcome of plugin selection.
type Plan struct {
	Selected []*plugin.Plugin
	Skipped  []Skipped
	Failures []Failure
}

func (r *Runner) warnUnknown(list string, names []string) {
	for _, n := range names {
		if !slices.ContainsFunc(r.defs, func(d plugin.Definition) bool { return d.Metadata().Name == n }) {
			r.log.Warn("unknown plugin name", "list", list, "plugin", n)
		}
	}
}

// Plan builds a plugin for every definition and decides which of them run.
// A plugin named in the only or enable list runs even when its triggers
// do not match; optional plugins run only when named.
func (r *Runner) Plan(ctx context.Context) (*Plan, error) {
	r.warnUnknown("only", r.cfg.OnlyPlugins)
	r.warnUnknown("skip", r.cfg.SkipPlugins)
	r.warnUnknown("enable", r.cfg.EnablePlugins)

	plan := &Plan{}
	for _, def := range r.defs {
		p, err := plugin.New(def, r.cfg, plugin.Deps{
			Archive:   r.archive,
			Policy:    r.policy,
			Runner:    r.exec,
			Evaluator: r.eval,
			Logger:    r.log,
		})
		if err != nil {
			return nil, err
		}

		if err := r.applyOptions(p); err != nil {
			plan.Failures = append(plan.Failures, Failure{Plugin: p.Name(), Phase: PhaseOptions, Code: errors.CodeOf(err), Error: err.Error()})
			continue
		}

		if reason := r.skipReason(ctx, p); reason != "" {
			r.log.Debug("plugin not selected", "plugin", p.Name(), "reason", reason)
			plan.Skipped = append(plan.Skipped, Skipped{Name: p.Name(), Reason: reason})
			continue
		}
		plan.Selected = append(plan.Selected, p)
	}

	sort.Slice(plan.Selected, func(i, j int) bool { return plan.Selected[i].Name() < plan.Selected[j].Name() })
	sort.Slice(plan.Skipped, func(i, j int) bool { return plan.Skipped[i].Name < plan.Skipped[j].Name })
	return plan, nil
}

func (r *Runner) applyOptions(p *plugin.Plugin) error {
	opts := r.cfg.OptionsFor(p.Name())
	names := make([]string, 0, len(opts))
	for k := range opts {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := p.SetOption(k, opts[k]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) skipReason(ctx context.Context, p *plugin.Plugin) string {
	name := p.Name()
	named := slices.Contains(r.cfg.OnlyPlugins, name) || slices.Contains(r.cfg.EnablePlugins, name)

	switch {
	case slices.Contains(r.cfg.SkipPlugins, name):
		return ReasonSkipped
	case len(r.cfg.OnlyPlugins) > 0 && !slices.Contains(r.cfg.OnlyPlugins, name):
		return ReasonNotSpecified
	case r.platform != 0 && !p.Metadata().Tags.Supports(r.platform):
		return ReasonPlatform
	case p.Metadata().RequiresRoot && r.geteuid() != 0:
		return ReasonRequiresRoot
	case named:
		return ""
	case !p.DefaultEnabled():
		return ReasonOptional
	case !p.CheckEnabled(ctx):
		return ReasonInactive
	default:
		return ""
	}
}

// Run executes a full collection and writes the manifest into the
// archive. Plugin failures are recorded in the manifest and do not fail
// the run; an error is returned only when the run itself could not
// proceed.
func (r *Runner) Run(ctx context.Context) (*Manifest, error) {
	start := r.now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()

	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, err
	}
	pluginsSelected.Set(float64(len(plan.Selected)))
	r.log.Info("plugins selected", "count", len(plan.Selected), "skipped", len(plan.Skipped))

	m := &Manifest{
		Label:    r.cfg.Label,
		Sysroot:  r.cfg.Sysroot,
		Start:    start.UTC(),
		Skipped:  plan.Skipped,
		Failures: plan.Failures,
	}
	m.Init(header.KindManifest, r.version)
	if host, err := r.hostname(); err == nil {
		m.Host = host
	}

	var mu sync.Mutex
	fail := func(p *plugin.Plugin, phase string, err error) {
		r.log.Error("plugin phase failed", "plugin", p.Name(), "phase", phase, "error", err)
		mu.Lock()
		m.Failures = append(m.Failures, Failure{Plugin: p.Name(), Phase: phase, Code: errors.CodeOf(err), Error: err.Error()})
		mu.Unlock()
	}

	active := make([]*plugin.Plugin, 0, len(plan.Selected))
	for _, p := range plan.Selected {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, "collection canceled during setup", err)
		}
		if err := p.Setup(ctx); err != nil {
			fail(p, PhaseSetup, err)
			pluginRunTotal.WithLabelValues(p.Name(), statusFailed).Inc()
			continue
		}
		if r.cfg.Verify {
			if err := p.SetupVerify(ctx); err != nil {
				fail(p, PhaseVerify, err)
			}
		}
		active = append(active, p)
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Threads)
	for _, p := range active {
		g.Go(func() error {
			if err := r.collect(ctx, p); err != nil {
				fail(p, PhaseCollect, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range active {
		if err := p.Postproc(ctx); err != nil {
			fail(p, PhasePostproc, err)
		}
	}

	if err := r.writeEnvironment(active); err != nil {
		r.log.Warn("failed to write environment file", "error", err)
	}

	for _, p := range active {
		s := p.Summary()
		m.Plugins = append(m.Plugins, s)
		if s.TimedOut {
			m.TimedOut = append(m.TimedOut, s.Name)
		}
		for _, c := range s.Commands {
			commandsTotal.WithLabelValues(s.Name, commandResult(c.Status)).Inc()
		}
		filesCopiedTotal.WithLabelValues(s.Name).Add(float64(len(s.Copied)))
	}

	end := r.now()
	m.End = end.UTC()
	m.Duration = end.Sub(start).Round(time.Millisecond).String()

	b, err := serializer.Marshal(serializer.FormatJSON, m)
	if err != nil {
		return nil, err
	}
	if err := r.archive.AddBinary(b, ManifestPath()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to archive manifest", err)
	}
	return m, nil
}

// collect runs one plugin's collection under its effective timeout. When
// the timer fires the plugin's timeout flag is set and its context
// canceled, which stops the running command; the plugin then skips its
// remaining work.
func (r *Runner) collect(ctx context.Context, p *plugin.Plugin) error {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	if d := p.EffectiveTimeout(); d > 0 {
		timer := time.AfterFunc(d, func() {
			r.log.Warn("plugin timed out", "plugin", p.Name(), "timeout", d.String())
			p.Timeout().Set()
			cancel()
		})
		defer timer.Stop()
	}

	r.log.Debug("collecting", "plugin", p.Name())
	err := p.Collect(pctx)
	pluginCollectDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		pluginRunTotal.WithLabelValues(p.Name(), statusFailed).Inc()
	case p.Timeout().IsSet():
		pluginRunTotal.WithLabelValues(p.Name(), statusTimeout).Inc()
	default:
		pluginRunTotal.WithLabelValues(p.Name(), statusOK).Inc()
	}
	return err
}

// writeEnvironment records the environment variables plugins asked for
// as sorted NAME=value lines in the archive's environment file. Unset
// variables are left out.
func (r *Runner) writeEnvironment(plugins []*plugin.Plugin) error {
	seen := make(map[string]bool)
	var lines []string
	for _, p := range plugins {
		for _, name := range p.EnvVars() {
			if seen[name] {
				continue
			}
			seen[name] = true
			if v, ok := r.lookupEnv(name); ok {
				lines = append(lines, fmt.Sprintf("%s=%s", name, v))
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	sort.Strings(lines)
	return r.archive.AddString(strings.Join(lines, "\n")+"\n", "environment")
}
