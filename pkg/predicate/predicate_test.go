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
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	modules  map[string]bool
	services map[string]bool
	calls    int
}

func (f *fakeChecker) ModuleLoaded(_ context.Context, name string) bool {
	f.calls++
	return f.modules[name]
}

func (f *fakeChecker) ServiceRunning(_ context.Context, name string) bool {
	f.calls++
	return f.services[name]
}

func TestEvaluate(t *testing.T) {
	checker := &fakeChecker{
		modules:  map[string]bool{"kvm": true},
		services: map[string]bool{"sshd": true},
	}

	tests := []struct {
		name   string
		dryRun bool
		opts   []Option
		want   bool
	}{
		{name: "empty", want: true},
		{name: "empty dry run", dryRun: true, want: false},
		{name: "module loaded", opts: []Option{WithKernelModules("kvm")}, want: true},
		{name: "module missing", opts: []Option{WithKernelModules("zfs")}, want: false},
		{name: "any module", opts: []Option{WithKernelModules("zfs", "kvm")}, want: true},
		{name: "service running", opts: []Option{WithServices("sshd")}, want: true},
		{name: "service stopped", opts: []Option{WithServices("httpd")}, want: false},
		{name: "module or service", opts: []Option{WithKernelModules("zfs"), WithServices("sshd")}, want: true},
		{name: "neither", opts: []Option{WithKernelModules("zfs"), WithServices("httpd")}, want: false},
		{name: "dry run wins", dryRun: true, opts: []Option{WithKernelModules("kvm")}, want: false},
		{name: "per predicate dry run", opts: []Option{WithKernelModules("kvm"), WithDryRun(true)}, want: false},
		{name: "cannot revoke global dry run", dryRun: true, opts: []Option{WithDryRun(false)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEvaluator(checker, tt.dryRun).New(tt.opts...)
			assert.Equal(t, tt.want, p.Evaluate(context.Background()))
		})
	}
}

func TestEvaluate_Nil(t *testing.T) {
	var p *Predicate
	assert.True(t, p.Evaluate(context.Background()))
	assert.False(t, p.DryRun())
	assert.Nil(t, p.KernelModules())
	assert.Equal(t, "<none>", p.String())
}

func TestEvaluate_NotCached(t *testing.T) {
	checker := &fakeChecker{modules: map[string]bool{}}
	p := NewEvaluator(checker, false).New(WithKernelModules("kvm"))

	assert.False(t, p.Evaluate(context.Background()))
	checker.modules["kvm"] = true
	assert.True(t, p.Evaluate(context.Background()))
	assert.Equal(t, 2, checker.calls)
}

func TestEvaluate_NilChecker(t *testing.T) {
	p := NewEvaluator(nil, false).New(WithServices("sshd"))
	assert.False(t, p.Evaluate(context.Background()))
	assert.True(t, NewEvaluator(nil, false).New().Evaluate(context.Background()))
}

func TestString(t *testing.T) {
	p := NewEvaluator(nil, false).New(WithKernelModules("a", "b"), WithServices("c"))
	assert.Equal(t, "dry_run=false, kmods=[a,b], services=[c]", p.String())

	p = NewEvaluator(nil, true).New()
	assert.Equal(t, "dry_run=true, kmods=[], services=[]", p.String())
}

func TestAccessorsCopy(t *testing.T) {
	p := NewEvaluator(nil, false).New(WithKernelModules("a"), WithServices("s"))
	mods := p.KernelModules()
	mods[0] = "x"
	assert.Equal(t, []string{"a"}, p.KernelModules())
	assert.Equal(t, []string{"s"}, p.Services())
}
