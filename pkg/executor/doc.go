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

// Package executor runs external commands for plugins.
//
// Commands are interpreted by /bin/sh in a new process group with
// LC_ALL=C and an optional environment overlay. Output is captured from
// stdout, optionally merged with stderr, and can be capped so only the
// last SizeLimit bytes are kept.
//
//	e := executor.New(executor.WithRateLimit(20, 4))
//	res, err := e.Run(ctx, executor.Request{
//	    Command:   "journalctl --no-pager",
//	    Timeout:   300 * time.Second,
//	    Stderr:    true,
//	    SizeLimit: 100 << 20,
//	})
//
// On timeout, or when ctx is done, the process group receives SIGTERM and
// then SIGKILL after a grace period. The result status is 124 in that
// case. A shell that cannot be started, typically because it is missing
// from a chroot, gives status 127 (not found) or 126 (not executable), as
// does a command the shell cannot find.
package executor
