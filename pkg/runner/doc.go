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

// Package runner supervises the plugins of one collection run.
//
// A run selects plugins (only, skip and enable lists, trigger checks,
// optional plugins), applies configured plugin options, then drives every
// selected plugin through its lifecycle:
//
//   - Setup and, when verification is requested, SetupVerify, one plugin
//     at a time
//   - Collect, concurrently up to the configured thread count, each plugin
//     under its own effective timeout
//   - Postproc, one plugin at a time
//
// When a plugin exceeds its timeout the runner sets the plugin's timeout
// flag and cancels its context; the plugin stops after the unit of work in
// progress. The run then writes the environment file and a Manifest into
// the archive and records Prometheus metrics, which WriteMetrics exports in
// textfile format.
package runner
