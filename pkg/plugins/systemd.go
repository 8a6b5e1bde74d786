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

	"github.com/NVIDIA/diagpack/pkg/plugin"
)

// envSecretPattern matches credentials in environment style output.
const envSecretPattern = `(?i)((?:password|passwd|secret|token|key)[A-Z_]*=)\S+`

// Systemd collects the state of the init system.
type Systemd struct{}

func (Systemd) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "systemd",
		Description: "System management daemon",
		Tags:        plugin.Tags(plugin.TagIndependent),
		Profiles:    []string{"system", "services", "boot"},
		Packages:    []string{"systemd"},
		Files:       []string{"/run/systemd/system"},
		Commands:    []string{"systemctl"},
		Options: []plugin.OptionSpec{
			{Name: "plot", Description: "render the boot chart as SVG", Speed: "slow", Default: false},
		},
	}
}

func (Systemd) Setup(ctx context.Context, p *plugin.Plugin) error {
	p.AddCommandOutputs(ctx, []string{
		"systemctl status --all --no-pager",
		"systemctl show --all",
		"systemctl show *service --all",
		"systemctl list-units",
		"systemctl list-units --failed",
		"systemctl list-unit-files",
		"systemctl list-jobs",
		"systemctl list-dependencies",
		"systemctl list-timers --all",
		"systemctl list-machines",
		"systemctl show-environment",
		"systemd-delta",
		"systemd-analyze",
		"systemd-analyze blame",
		"systemd-analyze dump",
		"systemd-inhibit --list",
		"journalctl --list-boots",
		"ls -lR /lib/systemd",
		"timedatectl",
	})
	p.AddCommandOutput(ctx, plugin.NewCommand("systemctl list-units --all", plugin.WithRootSymlink("systemctl_list-units")))

	if p.Options().Bool("plot") {
		p.AddCommandOutput(ctx, plugin.NewCommand("systemd-analyze plot",
			plugin.WithSuggestedFilename("systemd-analyze_plot.svg")))
	}
	if p.Options().Bool(plugin.OptionVerify) {
		p.AddCommandOutput(ctx, plugin.NewCommand("journalctl --verify"))
	}

	p.AddForbiddenPath("/dev/null")
	p.AddCopySpec(ctx, []string{
		"/etc/systemd",
		"/lib/systemd/system",
		"/lib/systemd/user",
		"/etc/vconsole.conf",
		"/run/systemd/generator*",
		"/run/systemd/seats",
		"/run/systemd/sessions",
		"/run/systemd/system",
		"/run/systemd/users",
		"/etc/modules-load.d/*.conf",
		"/etc/yum/protected.d/systemd.conf",
		"/etc/tmpfiles.d/*.conf",
		"/run/tmpfiles.d/*.conf",
		"/usr/lib/tmpfiles.d/*.conf",
	})
	return nil
}

func (Systemd) Postproc(_ context.Context, p *plugin.Plugin) error {
	if _, err := p.SubstituteCommandOutput("systemctl show-environment", envSecretPattern, "${1}********"); err != nil {
		return err
	}
	_, err := p.SubstitutePathPattern("/etc/systemd/system/.*\\.d/", envSecretPattern, "${1}********")
	return err
}
