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

// Package archive stores collected data and packs it for transport.
//
// Directory implements Archive on a plain directory tree. Plugins write to
// it concurrently through the Archive interface. Once collection finishes
// the tree is packed with Finalize:
//
//	dir, err := archive.NewDirectory(os.TempDir(), archive.Name(cfg.Label, host, time.Now()))
//	...
//	res, err := dir.Finalize(ctx, archive.FinalizeOptions{
//	    Compression: config.CompressionZstd,
//	    Recipients:  cfg.EncryptRecipients,
//	})
//
// The result is a tarball compressed with gzip, zstd or lz4, optionally
// encrypted with age to X25519 recipients, plus a BLAKE3 checksum file in
// sha256sum format.
package archive
