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
	"slices"
	"strings"

	"github.com/NVIDIA/diagpack/pkg/plugin"
)

const (
	kernelOptionTimerList = "with-timer"
	kernelOptionTrace     = "trace"
)

// Kernel collects kernel, module and sysctl state.
type Kernel struct{}

func (Kernel) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "kernel",
		Description: "Linux kernel",
		Tags:        plugin.Tags(plugin.TagIndependent),
		Profiles:    []string{"system", "hardware", "kernel"},
		Options: []plugin.OptionSpec{
			{Name: kernelOptionTimerList, Description: "gather /proc/timer* statistics", Speed: "fast", Default: false},
			{Name: kernelOptionTrace, Description: "gather /sys/kernel/debug/tracing/trace file", Speed: "slow", Default: false},
		},
	}
}

func (Kernel) Setup(ctx context.Context, p *plugin.Plugin) error {
	p.AddCommandOutput(ctx, plugin.NewCommand("uname -a", plugin.WithRootSymlink("uname")))
	p.AddCommandOutput(ctx, plugin.NewCommand("lsmod", plugin.WithRootSymlink("lsmod")))
	p.AddCommandOutputs(ctx, []string{
		"ls -lt /sys/kernel/slab",
		"dmesg",
		"sysctl -a",
		"dkms status",
	})

	// modinfo of every known module in one invocation.
	mods, err := p.Policy().KernelModules(ctx)
	if err != nil {
		p.Logger().Info("kernel modules unavailable", "error", err)
	}
	mods = slices.Compact(slices.Sorted(slices.Values(mods)))
	if len(mods) > 0 {
		p.AddCommandOutput(ctx, plugin.NewCommand("modinfo "+strings.Join(mods, " "),
			plugin.WithSuggestedFilename("modinfo_ALL_MODULES")))
	}

	p.AddForbiddenPath(
		"/sys/kernel/debug/tracing/trace_pipe",
		"/sys/kernel/debug/tracing/README",
		"/sys/kernel/debug/tracing/trace_stat",
		"/sys/kernel/debug/tracing/per_cpu",
		"/proc/kallsyms",
	)
	if !p.Options().Bool(kernelOptionTrace) {
		p.AddForbiddenPath("/sys/kernel/debug/tracing/trace")
	}

	p.AddCopySpec(ctx, []string{
		"/proc/modules",
		"/proc/sys/kernel/random/boot_id",
		"/sys/module/*/parameters",
		"/sys/module/*/initstate",
		"/sys/module/*/refcnt",
		"/sys/module/*/taint",
		"/sys/module/*/version",
		"/sys/firmware/acpi/*",
		"/sys/kernel/debug/tracing/*",
		"/sys/fs/pstore",
		"/sys/kernel/livepatch",
		"/proc/cmdline",
		"/proc/driver",
		"/proc/sys/kernel/tainted",
		"/proc/softirqs",
		"/proc/lock*",
		"/proc/misc",
		"/var/log/dmesg",
		"/etc/sysctl.conf",
		"/etc/sysctl.d",
		"/lib/sysctl.d",
		"/etc/modprobe.conf",
		"/etc/modprobe.d",
		"/etc/modules-load.d",
	})
	if p.Options().Bool(kernelOptionTimerList) {
		p.AddCopySpec(ctx, []string{"/proc/timer*"})
	}
	return nil
}
