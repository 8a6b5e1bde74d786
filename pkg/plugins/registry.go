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

package plugins

import (
	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/plugin"
)

// Builtins returns the plugins compiled into the binary.
func Builtins() []plugin.Definition {
	return []plugin.Definition{
		Kernel{},
		Logs{},
		Systemd{},
	}
}

// Definitions returns the built-in plugins followed by the declarative
// ones. A declarative plugin may not reuse a built-in name.
func Definitions(specs ...config.PluginSpec) ([]plugin.Definition, error) {
	defs := Builtins()
	names := make(map[string]bool, len(defs)+len(specs))
	for _, d := range defs {
		names[d.Metadata().Name] = true
	}

	for _, s := range specs {
		if names[s.Name] {
			return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest, "plugin name already defined",
				map[string]any{"plugin": s.Name})
		}
		d, err := NewDeclarative(s)
		if err != nil {
			return nil, err
		}
		names[s.Name] = true
		defs = append(defs, d)
	}
	return defs, nil
}
