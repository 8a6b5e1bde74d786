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

package defaults

// Size budgets, in megabytes unless noted otherwise.
const (
	// LogSizeMB is the default per-copy-spec and per-command size limit.
	LogSizeMB = 25

	// JournalSizeMB is the minimum size limit applied to journal output.
	JournalSizeMB = 100

	// NameMax is the longest archive file name, in bytes.
	NameMax = 255

	// MaxParseBytes caps files read whole for parsing, such as /proc/modules.
	MaxParseBytes = 1 << 20
)
