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

// Package defaults provides centralized configuration constants for diagpack.
//
// This package defines timeout values, size budgets, and other configuration
// defaults used across the codebase. Centralizing these values ensures consistency
// and makes tuning easier.
//
// # Categories
//
//   - Command timeouts: per-command deadline and kill grace period
//   - Plugin timeouts: wall-clock budget for one plugin's collection
//   - Size budgets: log copy limits and journal minimums, in megabytes
//   - Kubernetes and registry timeouts: for manifest and archive upload
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/NVIDIA/diagpack/pkg/defaults"
//
//	cmd := plugin.NewCommand("lsmod",
//	    plugin.WithSizeLimitMB(defaults.LogSizeMB),
//	    plugin.WithTimeout(defaults.CommandTimeout))
//
// # Guidelines
//
//   - Commands: 300s default, always enforced by a process kill
//   - Plugins: 300s default, enforced cooperatively between work units
//   - Logs: 25MB per copy spec unless all logs are requested
//   - Journal: never less than 100MB per invocation
package defaults
