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
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SCLPlaceholder is replaced by the software collection name in the
// triggers and specs of SCL plugins.
const SCLPlaceholder = "{scl}"

// sclPrefixDir holds per collection install prefixes.
var sclPrefixDir = "/etc/scl/prefixes"

var reSCLRoot = regexp.MustCompile(`^/(etc|var)/`)

// SCLExpand substitutes scl into template.
func SCLExpand(template, scl string) string {
	return strings.ReplaceAll(template, SCLPlaceholder, scl)
}

// SCLCommand wraps cmd to run inside the software collection scl. Each
// element of path is prefixed with the collection root and prepended to
// PATH.
func SCLCommand(cmd, scl, prefix string, path []string) string {
	root := strings.TrimRight(prefix, "/") + "/" + scl
	env := "$PATH"
	for _, p := range path {
		env = root + p + ":" + env
	}
	return fmt.Sprintf("scl enable %s \"PATH=%s %s\"", scl, env, cmd)
}

// SCLCopySpec moves spec below the collection root when it names a path
// under /etc or /var.
func SCLCopySpec(spec, scl, prefix string) string {
	m := reSCLRoot.FindStringSubmatch(spec)
	if m == nil {
		return spec
	}
	root := "/" + strings.Trim(prefix, "/") + "/" + scl + "/" + m[1] + "/"
	return root + strings.TrimPrefix(spec, m[0])
}

// SCLPrefix returns the install prefix of scl from the collected system,
// falling back to the policy default.
func (p *Plugin) SCLPrefix(scl string) string {
	b, err := os.ReadFile(p.JoinSysroot(filepath.Join(sclPrefixDir, scl)))
	if err != nil {
		return p.policy.DefaultSCLPrefix()
	}
	if prefix := strings.TrimSpace(string(b)); prefix != "" {
		return prefix
	}
	return p.policy.DefaultSCLPrefix()
}

// SCLsMatched returns the software collections that enabled the plugin.
func (p *Plugin) SCLsMatched() []string {
	return append([]string(nil), p.scls...)
}

// AddCommandOutputSCL queues cmd to run inside scl.
func (p *Plugin) AddCommandOutputSCL(ctx context.Context, scl string, cmd Command, path ...string) {
	if len(path) == 0 {
		path = []string{"/usr/bin", "/usr/sbin"}
	}
	if cmd.SuggestFilename == "" {
		cmd.SuggestFilename = cmd.Cmd
	}
	cmd.Cmd = SCLCommand(cmd.Cmd, scl, p.SCLPrefix(scl), path)
	if cmd.Subdir == "" {
		cmd.Subdir = scl
	}
	p.AddCommandOutput(ctx, cmd)
}

// AddCopySpecSCL queues specs from inside scl.
func (p *Plugin) AddCopySpecSCL(ctx context.Context, scl string, specs []string, opts ...CopyOption) {
	prefix := p.SCLPrefix(scl)
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = SCLCopySpec(SCLExpand(s, scl), scl, prefix)
	}
	p.AddCopySpec(ctx, out, opts...)
}
