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
	"archive/tar"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// ChecksumSuffix is appended to the archive path to name its checksum file.
const ChecksumSuffix = ".b3"

// FinalizeOptions controls how a Directory is packed.
type FinalizeOptions struct {
	// OutputDir receives the tarball and checksum. Defaults to the
	// directory containing the archive.
	OutputDir   string
	Compression config.Compression
	// Recipients are age X25519 public keys. When set the tarball is
	// encrypted to all of them.
	Recipients []string
}

// Finalized describes a packed archive.
type Finalized struct {
	Path         string `json:"path" yaml:"path"`
	ChecksumPath string `json:"checksumPath" yaml:"checksumPath"`
	Checksum     string `json:"checksum" yaml:"checksum"`
	Size         int64  `json:"size" yaml:"size"`
	Encrypted    bool   `json:"encrypted" yaml:"encrypted"`
}

// Extension returns the file extension for a compression.
func Extension(c config.Compression) string {
	switch c {
	case config.CompressionGzip:
		return ".tar.gz"
	case config.CompressionZstd:
		return ".tar.zst"
	case config.CompressionLZ4:
		return ".tar.lz4"
	default:
		return ".tar"
	}
}

// Finalize packs the directory into a compressed tarball, optionally
// encrypts it, and writes a BLAKE3 checksum file next to it.
func (d *Directory) Finalize(ctx context.Context, opts FinalizeOptions) (*Finalized, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	recipients, err := parseRecipients(opts.Recipients)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(d.root)
	}
	name := d.name + Extension(opts.Compression)
	if len(recipients) > 0 {
		name += ".age"
	}
	path := filepath.Join(outDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create archive file", err)
	}

	hasher := blake3.New()
	counter := &countingWriter{w: io.MultiWriter(f, hasher)}

	if err := d.pack(ctx, counter, opts.Compression, recipients); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to close archive file", err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	sumPath := path + ChecksumSuffix
	if err := os.WriteFile(sumPath, fmt.Appendf(nil, "%s  %s\n", sum, name), 0o600); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to write checksum file", err)
	}

	slog.Info("archive finalized",
		"path", path,
		"size", counter.n,
		"compression", string(opts.Compression),
		"encrypted", len(recipients) > 0,
	)

	return &Finalized{
		Path:         path,
		ChecksumPath: sumPath,
		Checksum:     sum,
		Size:         counter.n,
		Encrypted:    len(recipients) > 0,
	}, nil
}

func parseRecipients(keys []string) ([]age.Recipient, error) {
	out := make([]age.Recipient, 0, len(keys))
	for _, k := range keys {
		r, err := age.ParseX25519Recipient(k)
		if err != nil {
			return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest, "invalid encryption recipient", err,
				map[string]any{"recipient": k})
		}
		out = append(out, r)
	}
	return out, nil
}

// pack streams tar -> compression -> encryption -> w. Writers are closed in
// reverse order so every layer flushes its trailer.
func (d *Directory) pack(ctx context.Context, w io.Writer, c config.Compression, recipients []age.Recipient) error {
	var closers []io.Closer
	sink := w

	if len(recipients) > 0 {
		enc, err := age.Encrypt(sink, recipients...)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to create age encryptor", err)
		}
		closers = append(closers, enc)
		sink = enc
	}

	switch c {
	case config.CompressionGzip:
		gz, err := gzip.NewWriterLevel(sink, gzip.DefaultCompression)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to create gzip writer", err)
		}
		closers = append(closers, gz)
		sink = gz
	case config.CompressionZstd:
		zw, err := zstd.NewWriter(sink, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to create zstd writer", err)
		}
		closers = append(closers, zw)
		sink = zw
	case config.CompressionLZ4:
		lw := lz4.NewWriter(sink)
		closers = append(closers, lw)
		sink = lw
	}

	tw := tar.NewWriter(sink)
	closers = append(closers, tw)

	if err := d.writeTar(ctx, tw); err != nil {
		if errors.HasCode(err, errors.ErrCodeTimeout) {
			return err
		}
		return errors.Wrap(errors.ErrCodeInternal, "failed to write tar stream", err)
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to flush archive", err)
		}
	}
	return nil
}

func (d *Directory) writeTar(ctx context.Context, tw *tar.Writer) error {
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeTimeout, "finalize canceled", err)
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		// tar has no socket type; the entry stays in the directory only.
		if info.Mode()&fs.ModeSocket != 0 {
			slog.Debug("skipping socket in tar stream", "path", rel)
			return nil
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("failed to build tar header for %q: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(filepath.Join(d.name, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %q: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to write %q to tar: %w", rel, err)
		}
		return nil
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
