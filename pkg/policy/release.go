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

package policy

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/diagpack/pkg/collector/file"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

var (
	filePathReleasePrimary  = "/etc/os-release"
	filePathReleaseFallback = "/usr/lib/os-release"
)

// Release is the parsed os-release of the collected system.
type Release struct {
	ID         string   `json:"id" yaml:"id"`
	IDLike     []string `json:"idLike,omitempty" yaml:"idLike,omitempty"`
	VersionID  string   `json:"versionId,omitempty" yaml:"versionId,omitempty"`
	PrettyName string   `json:"prettyName,omitempty" yaml:"prettyName,omitempty"`
}

// Families returns ID followed by ID_LIKE, most specific first.
func (r *Release) Families() []string {
	return append([]string{r.ID}, r.IDLike...)
}

// ReadRelease parses os-release under sysroot, falling back to the
// /usr/lib copy as freedesktop.org specifies.
//
//	NAME="Ubuntu"
//	ID=ubuntu
//	ID_LIKE=debian
//	VERSION_ID="22.04"
func ReadRelease(sysroot string) (*Release, error) {
	path := filepath.Join(sysroot, filePathReleasePrimary)
	if _, err := os.Stat(path); stderrors.Is(err, os.ErrNotExist) {
		path = filepath.Join(sysroot, filePathReleaseFallback)
	}

	parser := file.NewParser(
		file.WithKVDelimiter("="),
		file.WithVTrimChars(`"'`),
		file.WithSkipComments(true),
	)
	params, err := parser.GetMap(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, "failed to read os-release", err)
	}

	r := &Release{
		ID:         strings.ToLower(params["ID"]),
		IDLike:     strings.Fields(strings.ToLower(params["ID_LIKE"])),
		VersionID:  params["VERSION_ID"],
		PrettyName: params["PRETTY_NAME"],
	}
	if r.ID == "" {
		r.ID = "linux"
	}
	return r, nil
}
