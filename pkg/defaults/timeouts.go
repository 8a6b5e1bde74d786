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

import "time"

// Command execution timeouts.
const (
	// CommandTimeout is the default deadline for one external command.
	CommandTimeout = 300 * time.Second

	// CommandKillGrace is how long a timed-out command gets between SIGTERM
	// and SIGKILL.
	CommandKillGrace = 2 * time.Second

	// ProbeTimeout bounds the short helper commands used by the host policy
	// (package queries, scl listing).
	ProbeTimeout = 30 * time.Second
)

// Plugin timeouts.
const (
	// PluginTimeout is the wall-clock budget for a plugin's collection
	// when neither the plugin nor the global configuration overrides it.
	PluginTimeout = 300 * time.Second

	// SystemdTimeout bounds a single D-Bus query to systemd.
	SystemdTimeout = 10 * time.Second
)

// Kubernetes and registry timeouts.
const (
	// ConfigMapWriteTimeout is the timeout for writing to ConfigMaps.
	ConfigMapWriteTimeout = 30 * time.Second

	// UploadTimeout is the timeout for pushing an archive to a registry.
	UploadTimeout = 10 * time.Minute
)

// HTTP client timeouts for fetching remote configuration and manifests.
const (
	// HTTPClientTimeout bounds a whole request including the body.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout bounds establishing the TCP connection.
	HTTPConnectTimeout = 5 * time.Second

	HTTPTLSHandshakeTimeout   = 5 * time.Second
	HTTPResponseHeaderTimeout = 10 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPKeepAlive             = 30 * time.Second
)
