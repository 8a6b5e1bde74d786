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

// Package file provides helpers for reading host files.
//
// The Parser reads small, line oriented files such as /proc/modules and
// /etc/os-release with a size cap and optional comment skipping:
//
//	p := file.NewParser(file.WithVTrimChars(`"`))
//	release, err := p.GetMap("/etc/os-release")
//
//	mods, err := file.NewParser().GetFields("/proc/modules")
//	for _, f := range mods {
//	    fmt.Println(f[0])
//	}
//
// Tail returns the trailing bytes of a file and is used when a log exceeds
// its collection budget:
//
//	last, err := file.Tail("/var/log/messages", 25<<20)
//
// Grep and FindAll scan a file with a compiled regular expression.
//
// All errors wrap the underlying os error, so errors.Is(err, os.ErrNotExist)
// works on the result.
package file
