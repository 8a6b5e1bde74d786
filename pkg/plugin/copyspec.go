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
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/NVIDIA/diagpack/pkg/predicate"
)

// compressedSuffixes are never tailed; the tail of a compressed stream is
// not useful.
var compressedSuffixes = []string{".gz", ".xz", ".bz", ".bz2"}

type copyOptions struct {
	sizeLimitMB *int
	tail        bool
	pred        *predicate.Predicate
}

// CopyOption configures AddCopySpec.
type CopyOption func(*copyOptions)

// CopySizeLimitMB overrides the configured log size for this copy spec.
// Zero disables the limit.
func CopySizeLimitMB(mb int) CopyOption {
	return func(o *copyOptions) {
		o.sizeLimitMB = &mb
	}
}

// CopyNoTail disables the tail fallback for the file that crosses the
// size limit.
func CopyNoTail() CopyOption {
	return func(o *copyOptions) {
		o.tail = false
	}
}

// CopyPredicate gates the copy spec on pred instead of the plugin
// predicate.
func CopyPredicate(pred *predicate.Predicate) CopyOption {
	return func(o *copyOptions) {
		o.pred = pred
	}
}

type globMatch struct {
	path  string
	mtime time.Time
}

// AddCopySpec queues the files matching each glob for collection. Matches
// are taken newest first until their combined size exceeds the size
// limit; the file that crosses the limit is tailed instead of copied.
func (p *Plugin) AddCopySpec(ctx context.Context, specs []string, opts ...CopyOption) {
	o := &copyOptions{tail: true}
	for _, opt := range opts {
		opt(o)
	}

	if !p.TestPredicate(ctx, false, o.pred) {
		p.log.Info("skipped copy spec due to predicate",
			"specs", specs, "predicate", p.Predicate(false, o.pred).String())
		return
	}

	limit := p.cfg.LogSizeBytes()
	if o.sizeLimitMB != nil {
		limit = int64(*o.sizeLimitMB) * 1024 * 1024
	}
	if p.cfg.AllLogs {
		limit = 0
	}

	for _, spec := range specs {
		if spec == "" {
			return
		}
		p.resolveCopySpec(p.JoinSysroot(spec), limit, o.tail)
	}
}

func (p *Plugin) resolveCopySpec(pattern string, limit int64, tail bool) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		p.log.Warn("invalid copy spec", "spec", pattern, "error", err)
		return
	}
	if len(paths) == 0 {
		return
	}

	matches := make([]globMatch, 0, len(paths))
	for _, path := range paths {
		m := globMatch{path: path}
		if fi, err := os.Stat(path); err == nil {
			m.mtime = fi.ModTime()
		}
		matches = append(matches, m)
	}
	slices.SortStableFunc(matches, func(a, b globMatch) int {
		return b.mtime.Compare(a.mtime)
	})

	var (
		current      int64
		last         string
		limitReached bool
	)
	for _, m := range matches {
		last = m.path
		if p.isForbidden(m.path) {
			p.log.Debug("skipping forbidden path", "path", m.path)
			continue
		}
		size := current
		if fi, err := os.Stat(m.path); err == nil {
			size += fi.Size()
		} else {
			p.log.Info("failed to stat copy spec match", "path", m.path, "error", err)
		}
		if limit > 0 && size > limit {
			limitReached = true
			break
		}
		current = size
		p.copyPaths.add(m.path)
	}

	if !limitReached || !tail || isCompressed(last) {
		return
	}
	remaining := limit - current
	if remaining <= 0 {
		return
	}
	dst := p.StripSysroot(last)
	name := strings.ReplaceAll(strings.TrimLeft(dst, "/"), "/", ".") + ".tailed"
	p.log.Debug("size limit reached, tailing file", "path", last, "bytes", remaining)
	p.strs = append(p.strs, stringEntry{
		name:    name,
		tailOf:  last,
		tailLen: remaining,
		linkAt:  dst,
	})
}

func isCompressed(path string) bool {
	for _, s := range compressedSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
