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

// Package logging configures the process-wide slog logger used by diagpack.
//
// Records are written to stderr as JSON and carry "module" and "version"
// attributes. The level comes from the --log-level flag, or from LOG_LEVEL
// when the flag is unset, and defaults to INFO. Accepted values are debug,
// info, warn (or warning) and error, case-insensitive. Debug level also
// adds the source location to each record.
//
// The CLI installs the logger before any command runs:
//
//	logging.SetDefaultStructuredLoggerWithLevel("diagpack", version, level)
//
// Packages log through slog directly. Each plugin gets a derived
// logger with a "plugin" attribute, so a failing command can be traced
// back to its plugin:
//
//	{"time":"2026-01-15T10:30:00Z","level":"WARN","msg":"command timed out",
//	 "module":"diagpack","version":"v0.3.0","plugin":"logs",
//	 "command":"journalctl --no-pager","timeout":"5m0s"}
//
// NewLogLogger adapts the configured handler for libraries that expect a
// *log.Logger.
package logging
