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

package predicate

import (
	"context"
	"fmt"
	"strings"
)

// Checker answers live host questions for a Predicate. policy.Policy
// satisfies it.
type Checker interface {
	ModuleLoaded(ctx context.Context, name string) bool
	ServiceRunning(ctx context.Context, name string) bool
}

// Evaluator builds predicates bound to one Checker and the run's dry-run
// setting.
type Evaluator struct {
	checker Checker
	dryRun  bool
}

// NewEvaluator returns an Evaluator. When dryRun is true every predicate
// it builds evaluates to false.
func NewEvaluator(checker Checker, dryRun bool) *Evaluator {
	return &Evaluator{checker: checker, dryRun: dryRun}
}

// Option configures a Predicate.
type Option func(*Predicate)

// WithKernelModules adds kernel modules, any one of which satisfies the
// predicate when loaded.
func WithKernelModules(names ...string) Option {
	return func(p *Predicate) {
		p.kernelModules = append(p.kernelModules, names...)
	}
}

// WithServices adds services, any one of which satisfies the predicate when
// running.
func WithServices(names ...string) Option {
	return func(p *Predicate) {
		p.services = append(p.services, names...)
	}
}

// WithDryRun forces the predicate false. It can only add the dry-run
// condition, never remove the evaluator's.
func WithDryRun(dryRun bool) Option {
	return func(p *Predicate) {
		p.dryRun = p.dryRun || dryRun
	}
}

// New builds a Predicate.
func (e *Evaluator) New(opts ...Option) *Predicate {
	p := &Predicate{checker: e.checker, dryRun: e.dryRun}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predicate gates a collection item on kernel modules, services and the
// dry-run flag. It holds no cached result.
type Predicate struct {
	checker       Checker
	dryRun        bool
	kernelModules []string
	services      []string
}

// Evaluate reports whether the predicate holds right now. A nil Predicate
// is always true.
func (p *Predicate) Evaluate(ctx context.Context) bool {
	if p == nil {
		return true
	}
	if p.dryRun {
		return false
	}
	if len(p.kernelModules) == 0 && len(p.services) == 0 {
		return true
	}
	if p.checker == nil {
		return false
	}
	for _, m := range p.kernelModules {
		if p.checker.ModuleLoaded(ctx, m) {
			return true
		}
	}
	for _, s := range p.services {
		if p.checker.ServiceRunning(ctx, s) {
			return true
		}
	}
	return false
}

// DryRun reports whether the predicate is forced false by dry-run.
func (p *Predicate) DryRun() bool {
	return p != nil && p.dryRun
}

// KernelModules returns a copy of the kernel module list.
func (p *Predicate) KernelModules() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.kernelModules...)
}

// Services returns a copy of the service list.
func (p *Predicate) Services() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.services...)
}

// String renders the predicate for logs and the plugin summary.
func (p *Predicate) String() string {
	if p == nil {
		return "<none>"
	}
	return fmt.Sprintf("dry_run=%t, kmods=[%s], services=[%s]",
		p.dryRun,
		strings.Join(p.kernelModules, ","),
		strings.Join(p.services, ","),
	)
}
