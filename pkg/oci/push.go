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
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/NVIDIA/diagpack/pkg/errors"
)

const (
	// ArtifactType is the artifact type of pushed diagnostic archives.
	ArtifactType = "application/vnd.nvidia.diagpack.archive.v1"

	mediaTypeArchive  = "application/vnd.nvidia.diagpack.archive.v1.tar"
	mediaTypeChecksum = "application/vnd.nvidia.diagpack.checksum.v1+blake3"
)

// PushOptions configures an archive push.
type PushOptions struct {
	// ArchivePath is the finalized archive file.
	ArchivePath string
	// ChecksumPath is pushed as a second layer when set.
	ChecksumPath string
	Reference    *Reference
	Version      string
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
	// Annotations are added to the manifest. A title annotation is
	// dropped; layer titles carry the file names.
	Annotations map[string]string
}

// PushResult describes a pushed artifact.
type PushResult struct {
	Digest    string `json:"digest" yaml:"digest"`
	Reference string `json:"reference" yaml:"reference"`
}

// archiveMediaType appends the compression of the archive file to the
// layer media type.
func archiveMediaType(path string) string {
	name := filepath.Base(path)
	mt := mediaTypeArchive
	encrypted := strings.HasSuffix(name, ".age")
	name = strings.TrimSuffix(name, ".age")
	switch {
	case strings.HasSuffix(name, ".tar.gz"):
		mt += "+gzip"
	case strings.HasSuffix(name, ".tar.zst"):
		mt += "+zstd"
	case strings.HasSuffix(name, ".tar.lz4"):
		mt += "+lz4"
	}
	if encrypted {
		mt += "+age"
	}
	return mt
}

// Push uploads a finalized archive to a registry. Docker credentials are
// used when available.
func Push(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if opts.Reference == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "OCI reference is required")
	}
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", opts.Reference.Registry, opts.Reference.Repository))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to initialize remote repository", err)
	}
	repo.PlainHTTP = opts.PlainHTTP
	repo.Client = createAuthClient(opts.PlainHTTP, opts.InsecureTLS)

	return push(ctx, opts, repo)
}

// push packs the archive into a local file store and copies it to dst.
func push(ctx context.Context, opts PushOptions, dst oras.Target) (*PushResult, error) {
	if opts.Reference == nil || opts.Reference.Tag == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "tag is required to push an archive")
	}
	if opts.ArchivePath == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "archive path is required")
	}

	absArchive, err := filepath.Abs(opts.ArchivePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to resolve archive path", err)
	}
	if _, err := os.Stat(absArchive); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, "archive not found", err)
	}

	fs, err := file.New(filepath.Dir(absArchive))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create file store", err)
	}
	defer func() { _ = fs.Close() }()

	archiveDesc, err := fs.Add(ctx, filepath.Base(absArchive), archiveMediaType(absArchive), absArchive)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to add archive to store", err)
	}
	layers := []ociv1.Descriptor{archiveDesc}

	if opts.ChecksumPath != "" {
		absSum, err := filepath.Abs(opts.ChecksumPath)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, "failed to resolve checksum path", err)
		}
		sumDesc, err := fs.Add(ctx, filepath.Base(absSum), mediaTypeChecksum, absSum)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, "failed to add checksum to store", err)
		}
		layers = append(layers, sumDesc)
	}

	annotations := map[string]string{
		ociv1.AnnotationVendor: "NVIDIA",
	}
	if opts.Version != "" {
		annotations[ociv1.AnnotationVersion] = opts.Version
	}
	for k, v := range opts.Annotations {
		annotations[k] = v
	}
	// The file store names the manifest after its title, which would
	// collide with the archive layer.
	delete(annotations, ociv1.AnnotationTitle)

	manifestDesc, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers:              layers,
		ManifestAnnotations: annotations,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to pack manifest", err)
	}

	tag := opts.Reference.Tag
	if err := fs.Tag(ctx, manifestDesc, tag); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to tag manifest in local store", err)
	}

	slog.Info("pushing archive", "reference", opts.Reference.ImageReference(), "layers", len(layers))
	desc, err := oras.Copy(ctx, fs, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "failed to push archive to registry", err)
	}

	return &PushResult{
		Digest:    desc.Digest.String(),
		Reference: opts.Reference.ImageReference(),
	}, nil
}

// createAuthClient creates an HTTP client with optional TLS configuration
// and Docker credential support.
func createAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, _ := credentials.NewStoreFromDocker(credentials.StoreOptions{})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if credStore != nil {
		client.Credential = credentials.Credential(credStore)
	}
	return client
}
