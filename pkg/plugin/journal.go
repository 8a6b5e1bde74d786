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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/predicate"
)

// Boot selectors understood by JournalCommand in addition to journalctl
// boot IDs and offsets.
const (
	BootThis = "this"
	BootLast = "last"
)

// JournalOptions selects journal entries for AddJournal.
type JournalOptions struct {
	Units      []string
	Boot       string
	Since      string
	Until      string
	Lines      int
	AllFields  bool
	Output     string
	Identifier string
	Catalog    bool
	// Timeout of zero uses defaults.CommandTimeout.
	Timeout time.Duration
	// SizeLimitMB of zero uses the configured log size. The effective
	// limit is never below defaults.JournalSizeMB.
	SizeLimitMB int
	Predicate   *predicate.Predicate
}

// JournalCommand renders the journalctl invocation for opts.
func JournalCommand(opts JournalOptions) string {
	var b strings.Builder
	b.WriteString("journalctl --no-pager ")
	for _, u := range opts.Units {
		fmt.Fprintf(&b, " --unit %s", u)
	}
	if opts.Identifier != "" {
		fmt.Fprintf(&b, " --identifier %s", opts.Identifier)
	}
	if opts.Catalog {
		b.WriteString(" --catalog")
	}
	if opts.AllFields {
		b.WriteString(" --all")
	}
	if boot := opts.Boot; boot != "" {
		switch boot {
		case BootThis:
			boot = ""
		case BootLast:
			boot = "-1"
		}
		fmt.Fprintf(&b, " --boot %s", boot)
	}
	if opts.Since != "" {
		fmt.Fprintf(&b, " --since %s", opts.Since)
	}
	if opts.Until != "" {
		fmt.Fprintf(&b, " --until %s", opts.Until)
	}
	if opts.Lines > 0 {
		fmt.Fprintf(&b, " --lines %d", opts.Lines)
	}
	if opts.Output != "" {
		fmt.Fprintf(&b, " --output %s", opts.Output)
	}
	return b.String()
}

// AddJournal queues a journalctl command.
func (p *Plugin) AddJournal(ctx context.Context, opts JournalOptions) {
	sizeMB := opts.SizeLimitMB
	if sizeMB == 0 {
		sizeMB = p.cfg.LogSize
	}
	sizeMB = max(sizeMB, defaults.JournalSizeMB)
	if p.cfg.AllLogs {
		sizeMB = 0
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaults.CommandTimeout
	}

	cmd := JournalCommand(opts)
	p.log.Debug("collecting journal", "command", cmd)
	p.AddCommandOutput(ctx, NewCommand(cmd,
		WithTimeout(timeout),
		WithSizeLimitMB(sizeMB),
		WithCommandPredicate(opts.Predicate),
	))
}
