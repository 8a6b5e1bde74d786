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

package archive

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// Directory is an Archive backed by a directory tree, finalized into a
// tarball once collection is done.
type Directory struct {
	mu      sync.Mutex
	name    string
	root    string
	tmp     string
	nameMax int
}

// NewDirectory creates the archive directory base/name and a scratch
// directory next to it.
func NewDirectory(base, name string) (*Directory, error) {
	if name == "" || strings.ContainsRune(name, '/') {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "invalid archive name",
			map[string]any{"name": name})
	}

	root := filepath.Join(base, name)
	tmp := filepath.Join(base, name+".tmp")
	for _, d := range []string{root, tmp} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to create %s", d), err)
		}
	}

	d := &Directory{name: name, root: root, tmp: tmp, nameMax: defaults.NameMax}
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err == nil && st.Namelen > 0 && int(st.Namelen) < d.nameMax {
		d.nameMax = int(st.Namelen)
	}
	return d, nil
}

// Name is the archive's top level directory name.
func (d *Directory) Name() string {
	return d.name
}

// Root is the archive's directory on disk.
func (d *Directory) Root() string {
	return d.root
}

// ArchivePath implements Archive.
func (d *Directory) ArchivePath(dst string) string {
	rel := filepath.Clean("/" + dst)
	return filepath.Join(d.root, rel)
}

// TempDir implements Archive.
func (d *Directory) TempDir() string {
	return d.tmp
}

// NameMax implements Archive.
func (d *Directory) NameMax() int {
	return d.nameMax
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (d *Directory) prepare(dst string) (string, error) {
	path := d.ArchivePath(dst)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create parent of %q: %w", dst, err)
	}
	return path, nil
}

// AddFile implements Archive. Permissions and modification time are
// preserved.
func (d *Directory) AddFile(src, dst string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.prepare(dst)
	if err != nil {
		return err
	}
	if exists(path) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", src, err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", src, err)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, st.Mode().Perm()|0o200)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %q: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", dst, err)
	}

	_ = os.Chmod(path, st.Mode().Perm())
	_ = os.Chtimes(path, st.ModTime(), st.ModTime())
	return nil
}

// AddString implements Archive.
func (d *Directory) AddString(content string, dst string) error {
	return d.write([]byte(content), dst)
}

// AddBinary implements Archive.
func (d *Directory) AddBinary(content []byte, dst string) error {
	return d.write(content, dst)
}

func (d *Directory) write(content []byte, dst string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.prepare(dst)
	if err != nil {
		return err
	}

	// A symlink at dst must be replaced, not written through.
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to replace link %q: %w", dst, err)
		}
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", dst, err)
	}
	return nil
}

// AddLink implements Archive.
func (d *Directory) AddLink(target, dst string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.prepare(dst)
	if err != nil {
		return err
	}
	if exists(path) {
		return nil
	}
	if err := os.Symlink(target, path); err != nil {
		return fmt.Errorf("failed to link %q: %w", dst, err)
	}
	return nil
}

// AddNode implements Archive.
func (d *Directory) AddNode(dst string, mode uint32, dev uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.prepare(dst)
	if err != nil {
		return err
	}
	if exists(path) {
		return nil
	}
	if err := unix.Mknod(path, mode, int(dev)); err != nil {
		if stderrors.Is(err, unix.EPERM) {
			slog.Debug("insufficient privilege to create device node", "path", dst)
			return nil
		}
		return fmt.Errorf("failed to create node %q: %w", dst, err)
	}
	return nil
}

// OpenFile implements Archive.
func (d *Directory) OpenFile(dst string) (io.ReadCloser, error) {
	f, err := os.Open(d.ArchivePath(dst))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat implements Archive.
func (d *Directory) Stat(dst string) (os.FileInfo, error) {
	return os.Lstat(d.ArchivePath(dst))
}

// Cleanup removes the archive directory and scratch space.
func (d *Directory) Cleanup() error {
	return stderrors.Join(os.RemoveAll(d.root), os.RemoveAll(d.tmp))
}
