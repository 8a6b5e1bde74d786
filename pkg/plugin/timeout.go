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
	"sync/atomic"
	"time"

	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/defaults"
)

// TimeoutFlag is set once by the supervisor when a plugin exceeds its
// budget. It is never cleared.
type TimeoutFlag struct {
	set atomic.Bool
}

// Set marks the plugin as timed out.
func (t *TimeoutFlag) Set() {
	t.set.Store(true)
}

// IsSet reports whether the plugin has timed out.
func (t *TimeoutFlag) IsSet() bool {
	return t.set.Load()
}

// EffectiveTimeout resolves the collection budget from the plugin's
// "timeout" option, the global plugin timeout and the plugin default, in
// that order of precedence. An option value of -1 defers to the next
// source. Zero means no limit.
func (p *Plugin) EffectiveTimeout() time.Duration {
	fallback := p.meta.Timeout
	if fallback <= 0 {
		fallback = defaults.PluginTimeout
	}

	own, err := p.options.Int(OptionTimeout)
	if err != nil {
		return fallback
	}
	global := p.cfg.PluginTimeout

	resolved := own
	if global != config.GlobalTimeoutUnset && own == -1 {
		resolved = global
	}
	if resolved > -1 {
		return time.Duration(resolved) * time.Second
	}
	return fallback
}
