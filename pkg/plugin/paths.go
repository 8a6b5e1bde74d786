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
	"path/filepath"
	"strings"
)

// pathSet is an insertion ordered set of host paths.
type pathSet struct {
	order []string
	seen  map[string]bool
}

func newPathSet() *pathSet {
	return &pathSet{seen: make(map[string]bool)}
}

func (s *pathSet) add(path string) bool {
	if s.seen[path] {
		return false
	}
	s.seen[path] = true
	s.order = append(s.order, path)
	return true
}

func (s *pathSet) list() []string {
	return append([]string(nil), s.order...)
}

func (s *pathSet) len() int {
	return len(s.order)
}

// drain returns the queued paths and empties the set. Paths drained once
// are not queued again.
func (s *pathSet) drain() []string {
	out := s.order
	s.order = nil
	return out
}

// Sysroot returns the root of the filesystem being collected.
func (p *Plugin) Sysroot() string {
	return p.sysroot
}

// JoinSysroot maps a path on the collected system to a host path.
func (p *Plugin) JoinSysroot(path string) string {
	if p.sysroot == "/" {
		return filepath.Clean("/" + path)
	}
	return filepath.Join(p.sysroot, strings.TrimLeft(path, "/"))
}

// StripSysroot maps a host path back to the collected system.
func (p *Plugin) StripSysroot(path string) string {
	if p.sysroot == "/" {
		return path
	}
	if path == p.sysroot {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, p.sysroot+"/"); ok {
		return "/" + rest
	}
	return path
}

// AddForbiddenPath excludes paths from collection. Patterns are globbed
// after joining the sysroot; a pattern without matches is kept as a
// literal path.
func (p *Plugin) AddForbiddenPath(patterns ...string) {
	for _, pattern := range patterns {
		joined := p.JoinSysroot(pattern)
		matches, err := filepath.Glob(joined)
		if err != nil {
			p.log.Warn("invalid forbidden path pattern", "pattern", pattern, "error", err)
			continue
		}
		if len(matches) == 0 && !hasGlobMeta(joined) {
			matches = []string{joined}
		}
		for _, m := range matches {
			p.log.Debug("adding forbidden path", "path", m)
			p.forbidden = append(p.forbidden, m)
		}
	}
}

func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, `*?[\`)
}

// isForbidden reports whether hostPath is or lies under a forbidden path.
func (p *Plugin) isForbidden(hostPath string) bool {
	for _, f := range p.forbidden {
		if hostPath == f || strings.HasPrefix(hostPath, strings.TrimSuffix(f, "/")+"/") {
			return true
		}
	}
	return false
}
