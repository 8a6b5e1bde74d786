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

package plugin

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reBinPrefix  = regexp.MustCompile(`^/(usr/|)(bin|sbin)/`)
	reUnsafeName = regexp.MustCompile(`[^\p{L}\p{N}_\-./]+`)
)

// MangleCommand derives an archive file name from a command line. Leading
// bin directories are dropped, runs of unsafe characters become "_", path
// separators become "." and the result is cut to nameMax bytes.
func MangleCommand(cmd string, nameMax int) string {
	name := reBinPrefix.ReplaceAllString(cmd, "")
	name = reUnsafeName.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, "/", ".")
	name = strings.Trim(name, " ._-")
	if nameMax > 0 && len(name) > nameMax {
		name = name[:nameMax]
		for !utf8.ValidString(name) {
			name = name[:len(name)-1]
		}
	}
	return name
}
