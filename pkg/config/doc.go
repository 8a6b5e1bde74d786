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

// Package config loads the diagpack run configuration.
//
// Configuration is a YAML document decoded on top of Default. Unknown keys
// are an error so typos surface instead of being ignored:
//
//	sysroot: /host
//	chroot: auto
//	logSize: 25
//	threads: 4
//	compression: zstd
//	pluginOptions:
//	  kernel:
//	    with-timer: "true"
//	plugins:
//	  - name: myapp
//	    triggers:
//	      files: [/etc/myapp]
//	    copy:
//	      - paths: [/etc/myapp, /var/log/myapp/*.log]
//	    commands:
//	      - cmd: myapp --version
//	    scrub:
//	      - file: /etc/myapp/app.conf
//	        pattern: '(password\s*=\s*)\S+'
//	        replacement: '${1}********'
//
// Command line flags are applied on top of the loaded value before
// Validate is called again.
package config
