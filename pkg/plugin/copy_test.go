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
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/predicate"
)

func collect(t *testing.T, env *testEnv, setup func(ctx context.Context, p *Plugin)) {
	t.Helper()
	ctx := context.Background()
	def := env.plugin.Definition().(*testDef)
	def.setup = func(ctx context.Context, p *Plugin) error {
		setup(ctx, p)
		return nil
	}
	require.NoError(t, env.plugin.Setup(ctx))
	require.NoError(t, env.plugin.Collect(ctx))
}

func TestCopyDirectory(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/etc/app/app.conf", "setting=1\n")
	env.writeFile(t, "/etc/app/conf.d/extra.conf", "extra=2\n")

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/etc/app"})
	})

	assert.Equal(t, "setting=1\n", env.read(t, "/etc/app/app.conf"))
	assert.Equal(t, "extra=2\n", env.read(t, "/etc/app/conf.d/extra.conf"))

	copied := env.plugin.CopiedFiles()
	require.Len(t, copied, 2)
	for _, c := range copied {
		assert.Equal(t, filepath.Join(env.sysroot, c.DstPath), c.SrcPath)
		assert.False(t, c.Symlink)
	}
}

func TestForbiddenPath(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/etc/app/app.conf", "ok")
	env.writeFile(t, "/etc/app/secret/key", "secret")
	env.writeFile(t, "/etc/app/secret.d/other", "other")
	env.writeFile(t, "/etc/app/shadow-1", "s1")
	env.writeFile(t, "/etc/app/shadow-2", "s2")

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddForbiddenPath("/etc/app/secret", "/etc/app/shadow-*")
		p.AddCopySpec(ctx, []string{"/etc/app", "/etc/app/secret/key", "/etc/app/shadow-*"})
	})

	assert.True(t, env.exists("/etc/app/app.conf"))
	assert.True(t, env.exists("/etc/app/secret.d/other"), "a sibling sharing the name prefix is not forbidden")
	assert.False(t, env.exists("/etc/app/secret/key"))
	assert.False(t, env.exists("/etc/app/shadow-1"))
	assert.False(t, env.exists("/etc/app/shadow-2"))

	for _, c := range env.plugin.CopiedFiles() {
		assert.False(t, env.plugin.isForbidden(c.SrcPath), "forbidden path recorded: %s", c.SrcPath)
	}
	assert.Len(t, env.plugin.ForbiddenPaths(), 3)
}

func TestSymlinkSelfReference(t *testing.T) {
	tests := []struct {
		name  string
		links map[string]string
		spec  string
	}{
		{"self", map[string]string{"/etc/loop": "loop"}, "/etc/loop"},
		{"dot self", map[string]string{"/etc/loop": "./loop"}, "/etc/loop"},
		{"cycle", map[string]string{"/etc/a": "b", "/etc/b": "a"}, "/etc/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			require.NoError(t, os.MkdirAll(filepath.Join(env.sysroot, "etc"), 0o755))
			for link, target := range tt.links {
				require.NoError(t, os.Symlink(target, filepath.Join(env.sysroot, link)))
			}

			collect(t, env, func(ctx context.Context, p *Plugin) {
				p.AddCopySpec(ctx, []string{tt.spec})
			})

			fi, err := env.archive.Stat(tt.spec)
			require.NoError(t, err)
			assert.NotZero(t, fi.Mode()&fs.ModeSymlink)

			copied := env.plugin.CopiedFiles()
			require.Len(t, copied, 1, "only the link itself is recorded")
			assert.True(t, copied[0].Symlink)
			assert.Equal(t, tt.links[tt.spec], copied[0].PointsTo)
		})
	}
}

func TestSymlinkToDirectory(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/opt/data/file", "x")
	require.NoError(t, os.MkdirAll(filepath.Join(env.sysroot, "etc"), 0o755))
	require.NoError(t, os.Symlink("/opt/data", filepath.Join(env.sysroot, "etc/data")))

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/etc/data"})
	})

	target, err := os.Readlink(env.archive.ArchivePath("/etc/data"))
	require.NoError(t, err)
	assert.Equal(t, "../opt/data", target)
	assert.Empty(t, env.plugin.CopiedFiles(), "directory targets are linked but not recorded")
	assert.False(t, env.exists("/opt/data/file"))
}

func TestSymlinkedSysroot(t *testing.T) {
	link := filepath.Join(t.TempDir(), "mnt")
	env := newTestEnv(t, func(cfg *config.Config) {
		require.NoError(t, os.Symlink(cfg.Sysroot, link))
		cfg.Sysroot = link
	}, nil)
	env.writeFile(t, "/usr/share/zone", "UTC")
	require.NoError(t, os.MkdirAll(filepath.Join(env.sysroot, "etc"), 0o755))
	require.NoError(t, os.Symlink("/usr/share/zone", filepath.Join(env.sysroot, "etc/localtime")))

	assert.Equal(t, env.sysroot, env.plugin.Sysroot())

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/etc/localtime"})
	})

	target, err := os.Readlink(env.archive.ArchivePath("/etc/localtime"))
	require.NoError(t, err)
	assert.Equal(t, "../usr/share/zone", target)
	assert.Equal(t, "UTC", env.read(t, "/etc/localtime"))
}

func TestSymlinkToFile(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/etc/real.conf", "real")
	require.NoError(t, os.Symlink("real.conf", filepath.Join(env.sysroot, "etc/alias.conf")))

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/etc/alias.conf"})
	})

	copied := env.plugin.CopiedFiles()
	require.Len(t, copied, 2)
	assert.True(t, copied[0].Symlink)
	assert.Equal(t, "real.conf", copied[0].PointsTo)
	assert.Equal(t, "/etc/real.conf", copied[1].DstPath)
	assert.Equal(t, "real", env.read(t, "/etc/alias.conf"))
}

func TestCopySpecialAndUnreadable(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(env.sysroot, "run"), 0o755))
	require.NoError(t, unix.Mkfifo(filepath.Join(env.sysroot, "run/fifo"), 0o600))
	host := env.writeFile(t, "/run/locked", "hidden")
	require.NoError(t, os.Chmod(host, 0o200))

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/run/*"})
	})

	fi, err := env.archive.Stat("/run/fifo")
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&fs.ModeNamedPipe)
	assert.Equal(t, "", env.read(t, "/run/locked"))

	copied := env.plugin.CopiedFiles()
	require.Len(t, copied, 1, "special files are not recorded")
	assert.Equal(t, "/run/locked", copied[0].DstPath)
}

func TestCopyDirectoryLoop(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/etc/app/a-looped/file", "never read")
	env.writeFile(t, "/etc/app/conf.d/extra.conf", "extra=2\n")
	env.writeFile(t, "/etc/app/app.conf", "setting=1\n")

	looped := filepath.Join(env.sysroot, "etc/app/a-looped")
	orig := readDir
	readDir = func(name string) ([]os.DirEntry, error) {
		if name == looped {
			return nil, &fs.PathError{Op: "open", Path: name, Err: unix.ELOOP}
		}
		return orig(name)
	}
	t.Cleanup(func() { readDir = orig })

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/etc/app"})
	})

	assert.False(t, env.exists("/etc/app/a-looped/file"))
	assert.Equal(t, "extra=2\n", env.read(t, "/etc/app/conf.d/extra.conf"))
	assert.Equal(t, "setting=1\n", env.read(t, "/etc/app/app.conf"))
	assert.Len(t, env.plugin.CopiedFiles(), 2)
}

func TestCopySocket(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/run/app.pid", "4242\n")
	l, err := net.Listen("unix", filepath.Join(env.sysroot, "run/app.sock"))
	require.NoError(t, err)
	defer l.Close()

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/run"})
	})

	fi, err := env.archive.Stat("/run/app.sock")
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&fs.ModeSocket)

	res, err := env.archive.Finalize(context.Background(), archive.FinalizeOptions{
		OutputDir:   t.TempDir(),
		Compression: config.CompressionGzip,
	})
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
}

func TestCopySpecSizeBudget(t *testing.T) {
	const mib = 1024 * 1024
	env := newTestEnv(t, nil, nil)

	now := time.Now()
	for i, name := range []string{"old.log", "middle.log", "new.log"} {
		host := env.writeFile(t, "/var/log/app/"+name, "")
		require.NoError(t, os.Truncate(host, 10*mib))
		mtime := now.Add(time.Duration(i-3) * time.Hour)
		require.NoError(t, os.Chtimes(host, mtime, mtime))
	}

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/var/log/app/*.log"}, CopySizeLimitMB(15))
		assert.Equal(t, []string{filepath.Join(env.sysroot, "var/log/app/new.log")}, p.QueuedPaths())
	})

	fi, err := env.archive.Stat("/var/log/app/new.log")
	require.NoError(t, err)
	assert.EqualValues(t, 10*mib, fi.Size())

	tailed := filepath.Join(archive.StringsDir, "test", "var.log.app.middle.log.tailed")
	fi, err = env.archive.Stat(tailed)
	require.NoError(t, err)
	assert.EqualValues(t, 5*mib, fi.Size())

	target, err := os.Readlink(env.archive.ArchivePath("/var/log/app/middle.log"))
	require.NoError(t, err)
	assert.Equal(t, "../../../"+tailed, target)

	assert.False(t, env.exists("/var/log/app/old.log"))
	require.Len(t, env.plugin.CopiedFiles(), 1)
}

func TestCopySpecLimits(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cfg *config.Config)
		files      []string
		opts       []CopyOption
		wantCopied int
		wantTailed bool
	}{
		{
			name:       "all logs disables limit",
			mutate:     func(cfg *config.Config) { cfg.AllLogs = true },
			files:      []string{"a.log", "b.log"},
			opts:       []CopyOption{CopySizeLimitMB(1)},
			wantCopied: 2,
		},
		{
			name:       "zero limit disables limit",
			files:      []string{"a.log", "b.log"},
			opts:       []CopyOption{CopySizeLimitMB(0)},
			wantCopied: 2,
		},
		{
			name:  "compressed files are not tailed",
			files: []string{"a.log.gz"},
			opts:  []CopyOption{CopySizeLimitMB(1)},
		},
		{
			name:  "tail disabled",
			files: []string{"a.log"},
			opts:  []CopyOption{CopySizeLimitMB(1), CopyNoTail()},
		},
		{
			name:       "oversized single file is tailed",
			files:      []string{"a.log"},
			opts:       []CopyOption{CopySizeLimitMB(1)},
			wantTailed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mutate, nil)
			for _, f := range tt.files {
				host := env.writeFile(t, "/logs/"+f, "")
				require.NoError(t, os.Truncate(host, 2*1024*1024))
			}
			collect(t, env, func(ctx context.Context, p *Plugin) {
				p.AddCopySpec(ctx, []string{"/logs/*"}, tt.opts...)
			})
			assert.Len(t, env.plugin.CopiedFiles(), tt.wantCopied)
			_, err := os.Stat(env.archive.ArchivePath(filepath.Join(archive.StringsDir, "test")))
			assert.Equal(t, tt.wantTailed, err == nil)
		})
	}
}

func TestCopySpecPredicate(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeFile(t, "/etc/gated.conf", "x")

	collect(t, env, func(ctx context.Context, p *Plugin) {
		p.AddCopySpec(ctx, []string{"/etc/gated.conf"},
			CopyPredicate(p.NewPredicate(predicate.WithKernelModules("not-loaded"))))
	})
	assert.Empty(t, env.plugin.CopiedFiles())
}

func TestJoinStripSysroot(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	p := env.plugin
	assert.Equal(t, filepath.Join(env.sysroot, "etc/hosts"), p.JoinSysroot("/etc/hosts"))
	assert.Equal(t, "/etc/hosts", p.StripSysroot(p.JoinSysroot("/etc/hosts")))
	assert.Equal(t, "/", p.StripSysroot(env.sysroot))
	assert.Equal(t, "/elsewhere", p.StripSysroot("/elsewhere"))
}
