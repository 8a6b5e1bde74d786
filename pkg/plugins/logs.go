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
	"fmt"
	"path/filepath"
	"slices"

	"github.com/NVIDIA/diagpack/pkg/plugin"
)

const logsOptionDays = "log_days"

// syslog configuration files that name further log files.
var syslogConfigs = []string{"/etc/syslog.conf", "/etc/rsyslog.conf"}

// reSyslogTarget captures the file of a selector line such as
// "kern.*  -/var/log/kern.log".
const reSyslogTarget = `^[^#\s]\S+\s+-?(/\S+)\s*$`

// Logs collects system logs and the journal.
type Logs struct{}

func (Logs) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "logs",
		Description: "System logs",
		Tags:        plugin.Tags(plugin.TagIndependent),
		Profiles:    []string{"system", "hardware", "storage"},
		Options: []plugin.OptionSpec{
			{Name: logsOptionDays, Description: "days of journal to collect", Speed: "fast", Default: 3},
		},
	}
}

func (Logs) Setup(ctx context.Context, p *plugin.Plugin) error {
	confs := append([]string(nil), syslogConfigs...)
	if d, err := filepath.Glob(p.JoinSysroot("/etc/rsyslog.d/*.conf")); err == nil {
		for _, c := range d {
			confs = append(confs, p.StripSysroot(c))
		}
	}

	var logFiles []string
	for _, conf := range confs {
		matches, err := p.RegexFindAll(reSyslogTarget, p.JoinSysroot(conf))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if !slices.Contains(logFiles, m) {
				logFiles = append(logFiles, m)
			}
		}
	}

	p.AddCopySpec(ctx, []string{
		"/etc/syslog.conf",
		"/etc/rsyslog.conf",
		"/etc/rsyslog.d",
		"/etc/systemd/journald.conf",
		"/etc/systemd/journald.conf.d",
		"/var/log/boot.log",
		"/var/log/installer",
		"/var/log/messages*",
		"/var/log/secure*",
		"/var/log/syslog*",
		"/var/log/kern.log*",
		"/var/log/udev",
		"/var/log/dist-upgrade",
		"/var/log/cloud-init*.log",
	})
	if len(logFiles) > 0 {
		p.AddCopySpec(ctx, logFiles)
	}

	p.AddCommandOutputs(ctx, []string{
		"journalctl --disk-usage",
		"ls -alZR /var/log",
	})

	days, err := p.Options().Int(logsOptionDays)
	if err != nil {
		return err
	}
	since := ""
	if days > 0 && !p.Config().AllLogs {
		since = fmt.Sprintf("-%ddays", days)
	}
	p.AddJournal(ctx, plugin.JournalOptions{Boot: plugin.BootThis, Catalog: true, Since: since})
	p.AddJournal(ctx, plugin.JournalOptions{Boot: plugin.BootLast, Lines: 100000})
	p.AddJournal(ctx, plugin.JournalOptions{Identifier: "kernel", Boot: plugin.BootThis})

	if p.Config().AllLogs {
		p.AddCopySpec(ctx, []string{"/var/log/journal/*", "/run/log/journal/*"})
	}
	return nil
}

func (Logs) Postproc(_ context.Context, p *plugin.Plugin) error {
	_, err := p.SubstitutePathPattern("/etc/rsyslog", `(?i)(password\s*=\s*")[^"]*(")`, "${1}********${2}")
	return err
}
