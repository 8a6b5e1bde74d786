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

import "context"

// DefaultSCLPrefix is where Red Hat software collections are installed.
const DefaultSCLPrefix = "/opt/rh"

// Policy answers questions about the host being collected. Implementations
// must be safe for concurrent use.
type Policy interface {
	// IsInstalled reports whether the named package is installed.
	IsInstalled(ctx context.Context, pkg string) bool

	IsService(ctx context.Context, name string) bool
	ServiceEnabled(ctx context.Context, name string) bool
	ServiceDisabled(ctx context.Context, name string) bool
	ServiceRunning(ctx context.Context, name string) bool
	// ServiceStatus returns the unit's active state, or "missing".
	ServiceStatus(ctx context.Context, name string) string

	// KernelModules returns loaded and builtin kernel module names.
	KernelModules(ctx context.Context) ([]string, error)
	ModuleLoaded(ctx context.Context, name string) bool

	// SoftwareCollections lists installed software collections.
	SoftwareCollections(ctx context.Context) []string
	DefaultSCLPrefix() string

	// VerifyCommand returns the package verification command for pkgs, or
	// "" when verification is not supported.
	VerifyCommand(pkgs []string) string
}
