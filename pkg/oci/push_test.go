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

package oci

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"

	"github.com/NVIDIA/diagpack/pkg/errors"
)

func writeArchive(t *testing.T, name string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("archive bytes"), 0o600))
	sum := path + ".b3"
	require.NoError(t, os.WriteFile(sum, []byte("abc  "+name+"\n"), 0o600))
	return path, sum
}

func TestArchiveMediaType(t *testing.T) {
	tests := map[string]string{
		"a.tar":         mediaTypeArchive,
		"a.tar.gz":      mediaTypeArchive + "+gzip",
		"a.tar.zst":     mediaTypeArchive + "+zstd",
		"a.tar.lz4":     mediaTypeArchive + "+lz4",
		"a.tar.zst.age": mediaTypeArchive + "+zstd+age",
	}
	for in, want := range tests {
		assert.Equal(t, want, archiveMediaType("/out/"+in), in)
	}
}

func TestPush(t *testing.T) {
	tests := []struct {
		name        string
		checksum    bool
		annotations map[string]string
		layers      int
	}{
		{"with checksum", true, map[string]string{"com.nvidia.diagpack.host": "node1"}, 2},
		{"archive only", false, map[string]string{"com.nvidia.diagpack.host": "node1"}, 1},
		{"caller title dropped", true, map[string]string{
			"com.nvidia.diagpack.host": "node1",
			ociv1.AnnotationTitle:      "diag-node1.tar.zst",
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path, sum := writeArchive(t, "diag-node1.tar.zst")
			if !tt.checksum {
				sum = ""
			}
			store := memory.New()

			res, err := push(ctx, PushOptions{
				ArchivePath:  path,
				ChecksumPath: sum,
				Reference:    &Reference{Registry: "localhost:5000", Repository: "diag", Tag: "node1"},
				Version:      "v0.1.0",
				Annotations:  tt.annotations,
			}, store)
			require.NoError(t, err)
			assert.Equal(t, "localhost:5000/diag:node1", res.Reference)
			assert.NotEmpty(t, res.Digest)

			desc, err := store.Resolve(ctx, "node1")
			require.NoError(t, err)
			assert.Equal(t, res.Digest, desc.Digest.String())

			b, err := content.FetchAll(ctx, store, desc)
			require.NoError(t, err)
			var m ociv1.Manifest
			require.NoError(t, json.Unmarshal(b, &m))

			assert.Equal(t, ArtifactType, m.ArtifactType)
			assert.NotContains(t, m.Annotations, ociv1.AnnotationTitle)
			assert.Equal(t, "v0.1.0", m.Annotations[ociv1.AnnotationVersion])
			assert.Equal(t, "node1", m.Annotations["com.nvidia.diagpack.host"])

			require.Len(t, m.Layers, tt.layers)
			assert.Equal(t, mediaTypeArchive+"+zstd", m.Layers[0].MediaType)
			assert.Equal(t, "diag-node1.tar.zst", m.Layers[0].Annotations[ociv1.AnnotationTitle])
			if tt.layers > 1 {
				assert.Equal(t, mediaTypeChecksum, m.Layers[1].MediaType)
			}

			layer, err := content.FetchAll(ctx, store, m.Layers[0])
			require.NoError(t, err)
			assert.Equal(t, "archive bytes", string(layer))
		})
	}
}

func TestPushValidation(t *testing.T) {
	ctx := context.Background()
	path, _ := writeArchive(t, "a.tar")
	ref := &Reference{Registry: "localhost:5000", Repository: "diag", Tag: "x"}

	tests := []struct {
		name string
		opts PushOptions
		code errors.ErrorCode
	}{
		{name: "no reference", opts: PushOptions{ArchivePath: path}, code: errors.ErrCodeInvalidRequest},
		{name: "no tag", opts: PushOptions{ArchivePath: path, Reference: ref.WithTag("")}, code: errors.ErrCodeInvalidRequest},
		{name: "no archive", opts: PushOptions{Reference: ref}, code: errors.ErrCodeInvalidRequest},
		{name: "missing archive", opts: PushOptions{ArchivePath: path + ".missing", Reference: ref}, code: errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := push(ctx, tt.opts, memory.New())
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code))
		})
	}

	_, err := Push(ctx, PushOptions{ArchivePath: path})
	assert.Error(t, err)
}
