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

// Package oci provides functionality for packaging and pushing artifacts to OCI-compliant registries.
//
// This package enables bundled artifacts to be pushed to any OCI-compliant registry
// (Docker Hub, GHCR, ECR, local registries, etc.) using the ORAS (OCI Registry As Storage) library.
// Artifacts are packaged as OCI Image Layout format and can be pushed to remote registries.
//
// # Overview
//
// The package provides two main operations:
//   - Package: Creates a local OCI artifact in OCI Image Layout format
//   - PushFromStore: Pushes a previously packaged artifact to a remote registry
//
// These can be combined for a package-then-push workflow, or used independently.
//
// Package oci uploads finalized diagnostic archives to OCI registries.
//
// Destinations use the oci:// scheme:
//
//	ref, err := oci.ParseReference("oci://ghcr.io/acme/diag:node-1")
//	if err != nil {
//	    return err
//	}
//	res, err := oci.Push(ctx, oci.PushOptions{
//	    ArchivePath:  fin.Path,
//	    ChecksumPath: fin.ChecksumPath,
//	    Reference:    ref,
//	})
//
// The archive becomes an OCI 1.1 artifact of type ArtifactType with the
// archive and its checksum file as layers. The layer media type carries
// the compression (+gzip, +zstd, +lz4) and +age when encrypted. Registry
// credentials come from the Docker config.
package oci
