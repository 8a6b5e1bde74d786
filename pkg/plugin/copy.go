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
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// readDir lists directories during copying. Tests replace it to inject
// listing errors.
var readDir = os.ReadDir

// copyPath copies the host path src into the archive. Directories are
// copied recursively and symlinks are archived as links before their
// targets are followed.
func (p *Plugin) copyPath(ctx context.Context, src string) error {
	if p.timeout.IsSet() || ctx.Err() != nil {
		return nil
	}
	if p.isForbidden(src) {
		p.log.Debug("skipping forbidden path", "path", src)
		return nil
	}

	fi, err := os.Lstat(src)
	if err != nil {
		p.log.Info("failed to stat path", "path", src, "error", err)
		return nil
	}
	dst := p.StripSysroot(src)

	switch mode := fi.Mode(); {
	case mode&fs.ModeSymlink != 0:
		return p.copySymlink(ctx, src)

	case mode.IsDir():
		if err := unix.Access(src, unix.R_OK); err != nil {
			p.log.Info("skipping unreadable directory", "path", src, "error", err)
			return nil
		}
		return p.copyDir(ctx, src)

	case mode&(fs.ModeDevice|fs.ModeCharDevice|fs.ModeNamedPipe|fs.ModeSocket) != 0:
		var st unix.Stat_t
		if err := unix.Lstat(src, &st); err != nil {
			p.log.Info("failed to stat special file", "path", src, "error", err)
			return nil
		}
		if err := p.archive.AddNode(dst, st.Mode, st.Rdev); err != nil {
			p.log.Warn("failed to archive special file", "path", src, "error", err)
		}
		return nil
	}

	// Files without read bits are archived empty so their presence is
	// still visible.
	if fi.Mode().Perm()&0o444 == 0 {
		err = p.archive.AddString("", dst)
	} else {
		err = p.archive.AddFile(src, dst)
	}
	if err != nil {
		p.log.Warn("failed to copy file", "path", src, "error", err)
		return nil
	}

	p.copied = append(p.copied, CopiedFile{SrcPath: src, DstPath: dst})
	return nil
}

func (p *Plugin) copySymlink(ctx context.Context, src string) error {
	linkdest, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("failed to read link %q: %w", src, err)
	}
	target := p.linkTarget(src, linkdest)

	reldest := linkdest
	if filepath.IsAbs(linkdest) {
		// Relative to the canonical directory so intermediate links do
		// not change the nesting level.
		dir := filepath.Dir(src)
		realdir, err := filepath.EvalSymlinks(dir)
		if err != nil {
			realdir = dir
		}
		if rel, err := filepath.Rel(realdir, target); err == nil {
			reldest = rel
		}
	}

	dst := p.StripSysroot(src)
	if err := p.archive.AddLink(reldest, dst); err != nil {
		p.log.Warn("failed to archive link", "path", src, "error", err)
		return nil
	}

	if fi, err := os.Stat(target); err == nil && fi.IsDir() {
		p.log.Debug("link target is a directory, not descending", "path", src, "target", target)
		return nil
	}

	p.copied = append(p.copied, CopiedFile{
		SrcPath:  src,
		DstPath:  dst,
		Symlink:  true,
		PointsTo: linkdest,
	})

	if _, err := os.Stat(src); stderrors.Is(err, unix.ELOOP) {
		p.log.Debug("link is part of a loop, not following", "path", src)
		return nil
	}
	if target == src {
		p.log.Debug("link points to itself, not following", "path", src)
		return nil
	}
	return p.copyPath(ctx, target)
}

// linkTarget returns the host path the link src pointing at linkdest
// refers to. Absolute targets are taken inside the sysroot.
func (p *Plugin) linkTarget(src, linkdest string) string {
	if filepath.IsAbs(linkdest) {
		return p.JoinSysroot(linkdest)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(src), linkdest))
}

func (p *Plugin) copyDir(ctx context.Context, src string) error {
	entries, err := readDir(src)
	if err != nil {
		if stderrors.Is(err, unix.ELOOP) {
			p.log.Error("too many levels of symbolic links copying directory", "path", src)
			return nil
		}
		return fmt.Errorf("failed to list %q: %w", src, err)
	}
	for _, e := range entries {
		if err := p.copyPath(ctx, filepath.Join(src, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
