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

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/NVIDIA/diagpack/pkg/collector/file"
)

// KernelModules returns the names of loaded modules from /proc/modules
// followed by the modules built into the running kernel.
func (l *Linux) KernelModules(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := file.NewParser(file.WithLenientUTF8(true)).GetFields(filePathKMod)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel modules from %s: %w", filePathKMod, err)
	}

	mods := make([]string, 0, len(rows))
	for _, fields := range rows {
		if len(fields) > 0 {
			mods = append(mods, fields[0])
		}
	}

	mods = append(mods, l.builtinModules()...)
	return mods, nil
}

func (l *Linux) builtinModules() []string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil
	}
	release := unix.ByteSliceToString(uts.Release[:])
	path := filepath.Join(l.sysroot, dirPathModules, release, fileNameBuiltin)

	lines, err := file.NewParser(file.WithMaxSize(8 << 20)).GetLines(path)
	if err != nil {
		slog.Debug("builtin module list unavailable", "path", path, "error", err)
		return nil
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimSuffix(filepath.Base(line), ".ko"))
	}
	return out
}

// ModuleLoaded implements Policy. Names are compared with '-' and '_'
// treated as equal, as the kernel does.
func (l *Linux) ModuleLoaded(ctx context.Context, name string) bool {
	mods, err := l.KernelModules(ctx)
	if err != nil {
		slog.Debug("cannot check kernel module", "module", name, "error", err)
		return false
	}
	want := normalizeModule(name)
	return slices.ContainsFunc(mods, func(m string) bool { return normalizeModule(m) == want })
}

func normalizeModule(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
