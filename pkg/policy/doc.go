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

// Package policy describes the host being collected.
//
// Plugins ask the Policy whether packages are installed, services exist or
// run, and kernel modules are loaded. Linux is the implementation for
// systemd based distributions:
//
//   - services are queried over D-Bus with github.com/coreos/go-systemd
//   - packages come from rpm or dpkg, listed once per run
//   - kernel modules come from /proc/modules plus modules.builtin
//
// When systemd is unreachable every service query reports false instead of
// failing, so collection continues on minimal containers.
package policy
