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
	"context"
	"log/slog"

	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
	"github.com/NVIDIA/diagpack/pkg/header"
	"github.com/NVIDIA/diagpack/pkg/serializer"
	"github.com/NVIDIA/diagpack/pkg/version"
)

// Set is a document of declarative plugins, loaded from a file, URL or
// ConfigMap.
//
//	kind: PluginSet
//	apiVersion: diagpack.nvidia.com/v1alpha1
//	minVersion: v0.2
//	plugins:
//	  - name: nvidia
//	    triggers:
//	      kernelModules: [nvidia]
//	    commands:
//	      - cmd: nvidia-smi -q
type Set struct {
	header.Header `json:",inline" yaml:",inline"`

	// MinVersion is the oldest tool version the set works with.
	MinVersion string              `json:"minVersion,omitempty" yaml:"minVersion,omitempty"`
	Plugins    []config.PluginSpec `json:"plugins" yaml:"plugins"`
}

// Validate checks the header, the tool version and every plugin.
// toolVersion values that do not parse, such as "dev", skip the version
// check.
func (s *Set) Validate(toolVersion string) error {
	if !s.Check(header.KindPluginSet) {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest, "not a plugin set",
			map[string]any{"kind": s.Kind.String(), "apiVersion": s.APIVersion})
	}

	if s.MinVersion != "" {
		minimum, err := version.ParseVersion(s.MinVersion)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRequest, "invalid minVersion", err)
		}
		current, err := version.ParseVersion(toolVersion)
		if err != nil {
			slog.Debug("skipping plugin set version check", "version", toolVersion)
		} else if !current.EqualsOrNewer(minimum) {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "plugin set requires a newer version",
				map[string]any{"minVersion": s.MinVersion, "version": toolVersion})
		}
	}

	seen := make(map[string]bool, len(s.Plugins))
	for i := range s.Plugins {
		p := &s.Plugins[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "duplicate plugin definition",
				map[string]any{"plugin": p.Name})
		}
		seen[p.Name] = true
	}
	return nil
}

// LoadSet reads and validates a plugin set.
func LoadSet(ctx context.Context, path, toolVersion string) (*Set, error) {
	s, err := serializer.FromFile[Set](ctx, path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to load plugin set", err)
	}
	if err := s.Validate(toolVersion); err != nil {
		return nil, err
	}
	return s, nil
}
