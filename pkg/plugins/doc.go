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

// Package plugins provides the plugin definitions shipped with diagpack.
//
// Built-in plugins:
//
//   - kernel: kernel version, modules, sysctl and firmware state
//   - logs: syslog files and the systemd journal
//   - systemd: unit state, configuration and boot analysis
//
// Plugins can also be declared in configuration or in a PluginSet
// document without writing Go:
//
//	plugins:
//	  - name: containerd
//	    triggers:
//	      services: [containerd]
//	    copy:
//	      - paths: [/etc/containerd]
//	    commands:
//	      - cmd: ctr version
//	        timeoutSeconds: 30
//	    scrub:
//	      - file: /etc/containerd/config.toml
//	        pattern: '(password = ")[^"]*'
//	        replacement: '${1}********'
//
// Definitions combines both; names must be unique.
package plugins
