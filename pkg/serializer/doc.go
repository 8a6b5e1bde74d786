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

// Package serializer encodes and decodes diagpack documents: the collection
// manifest, plugin listings and declarative plugin sets.
//
// # Formats
//
//   - json: default, machine readable
//   - yaml: human readable, used for plugin sets
//   - table: flattened FIELD/VALUE rows for terminals, write only
//   - cbor: compact binary encoding for transport
//
// FormatFromPath picks a format from a file extension (.yaml/.yml, .txt/.table,
// .cbor), defaulting to JSON.
//
// # Destinations
//
// NewFileWriterOrStdout resolves an output path:
//
//	w, err := serializer.NewFileWriterOrStdout(serializer.FormatYAML, "cm://diag/node-1")
//	if err != nil {
//	    return err
//	}
//	if c, ok := w.(serializer.Closer); ok {
//	    defer c.Close()
//	}
//	return w.Serialize(ctx, manifest)
//
// An empty path or "-" writes to stdout; cm://namespace/name applies a
// ConfigMap; anything else creates a file.
//
// # Sources
//
// FromFile decodes a typed value from a local file, an http(s) URL or a
// ConfigMap:
//
//	set, err := serializer.FromFile[plugins.Set](ctx, "https://example.com/plugins.yaml")
package serializer
