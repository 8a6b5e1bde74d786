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

// Package cli implements the diagpack command-line interface.
//
// # Commands
//
// collect - Collect a diagnostic archive:
//
//	diagpack collect [--sysroot DIR] [--only-plugins NAME] [--plugins FILE]
//	    [--compression zstd] [--encrypt-to AGE_RECIPIENT] [--push oci://REGISTRY/REPO[:TAG]]
//	    [--output FILE|cm://NS/NAME] [--format yaml|json|table|cbor]
//
// Runs the enabled plugins, finalizes the archive with a BLAKE3 checksum,
// optionally encrypts and pushes it, and writes the run document.
//
// list - List plugins:
//
//	diagpack list [--format table]
//
// Shows every built-in and declarative plugin, whether it would run and
// why not.
//
// # Configuration
//
// --config (or DIAGPACK_CONFIG) names a YAML run configuration. Flags set
// on the command line override it; list flags such as --skip-plugins are
// appended.
//
// # Environment Variables
//
//	LOG_LEVEL          Set logging verbosity (debug, info, warn, error)
//	DIAGPACK_CONFIG    Default for --config
//	KUBECONFIG         Kubeconfig used for cm:// destinations and sources
//
// # Exit Status
//
// 0 when the run completed, including runs where individual plugins
// failed; those are listed in the run document. 1 when the run could not
// start or the archive could not be written.
package cli
