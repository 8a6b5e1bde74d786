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

package archive

import (
	"io"
	"os"
)

// Well known top level directories of an archive.
const (
	CommandsDir = "sos_commands"
	StringsDir  = "sos_strings"
	ReportsDir  = "sos_reports"
)

// Archive is the sink plugins write collected data to. Destination paths
// are archive relative; a leading "/" is ignored, so host paths can be used
// directly. Implementations must be safe for concurrent use.
type Archive interface {
	// AddFile copies the host file src to dst. An existing dst is kept.
	AddFile(src, dst string) error
	// AddString writes content to dst, replacing any existing entry.
	AddString(content string, dst string) error
	// AddBinary writes content to dst, replacing any existing entry.
	AddBinary(content []byte, dst string) error
	// AddLink creates a symlink at dst pointing to target. An existing dst
	// is kept.
	AddLink(target, dst string) error
	// AddNode creates a device node at dst. Lack of privilege is not an
	// error.
	AddNode(dst string, mode uint32, dev uint64) error
	// OpenFile opens the archived copy of dst for reading.
	OpenFile(dst string) (io.ReadCloser, error)
	// Stat describes the archived entry at dst without following links.
	Stat(dst string) (os.FileInfo, error)
	// TempDir is scratch space that is not part of the archive.
	TempDir() string
	// ArchivePath returns where dst lives on the local filesystem.
	ArchivePath(dst string) string
	// NameMax is the longest file name the archive accepts.
	NameMax() int
}
