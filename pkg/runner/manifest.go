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

package runner

import (
	"time"

	"github.com/NVIDIA/diagpack/pkg/archive"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/header"
	"github.com/NVIDIA/diagpack/pkg/plugin"
)

// Phases a plugin failure is recorded for.
const (
	PhaseOptions  = "options"
	PhaseSetup    = "setup"
	PhaseVerify   = "verify"
	PhaseCollect  = "collect"
	PhasePostproc = "postproc"
)

// Manifest describes one collection run.
type Manifest struct {
	header.Header `json:",inline" yaml:",inline"`

	Label    string    `json:"label,omitempty" yaml:"label,omitempty"`
	Host     string    `json:"host,omitempty" yaml:"host,omitempty"`
	Sysroot  string    `json:"sysroot" yaml:"sysroot"`
	Start    time.Time `json:"start" yaml:"start"`
	End      time.Time `json:"end" yaml:"end"`
	Duration string    `json:"duration" yaml:"duration"`

	Plugins  []plugin.Summary `json:"plugins" yaml:"plugins"`
	Skipped  []Skipped        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failures []Failure        `json:"failures,omitempty" yaml:"failures,omitempty"`
	TimedOut []string         `json:"timedOut,omitempty" yaml:"timedOut,omitempty"`

	// Archive is filled in once the archive has been finalized.
	Archive *archive.Finalized `json:"archive,omitempty" yaml:"archive,omitempty"`
	// Pushed is the registry reference and digest of an uploaded archive.
	Pushed string `json:"pushed,omitempty" yaml:"pushed,omitempty"`
}

// Skipped is a plugin that was not selected, and why.
type Skipped struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason" yaml:"reason"`
}

// Failure is a plugin phase that returned an error.
type Failure struct {
	Plugin string           `json:"plugin" yaml:"plugin"`
	Phase  string           `json:"phase" yaml:"phase"`
	Code   errors.ErrorCode `json:"code" yaml:"code"`
	Error  string           `json:"error" yaml:"error"`
}

// ManifestPath is where the manifest is stored inside the archive.
func ManifestPath() string {
	return archive.ReportsDir + "/manifest.json"
}
