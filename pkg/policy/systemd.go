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
	"context"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/NVIDIA/diagpack/pkg/defaults"
)

// unitConn is the subset of the systemd D-Bus API used by Linux.
type unitConn interface {
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	ListUnitFilesByPatternsContext(ctx context.Context, states []string, patterns []string) ([]dbus.UnitFile, error)
	Close()
}

type dialFunc func(ctx context.Context) (unitConn, error)

func dialSystemd(ctx context.Context) (unitConn, error) {
	conn, err := dbus.NewSystemdConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ServiceMissing is the status reported for units systemd does not know.
const ServiceMissing = "missing"

// conn returns the shared systemd connection, dialing on first use. A
// failed dial is not retried.
func (l *Linux) conn(ctx context.Context) unitConn {
	l.unitsMu.Lock()
	defer l.unitsMu.Unlock()

	if l.units != nil || l.noUnits {
		return l.units
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.SystemdTimeout)
	defer cancel()

	c, err := l.dial(ctx)
	if err != nil {
		slog.Info("systemd is not available, service checks will report false", "error", err)
		l.noUnits = true
		return nil
	}
	l.units = c
	return c
}

func unitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

func (l *Linux) unitFileState(ctx context.Context, name string) string {
	c := l.conn(ctx)
	if c == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, defaults.SystemdTimeout)
	defer cancel()

	unit := unitName(name)
	files, err := c.ListUnitFilesByPatternsContext(ctx, nil, []string{unit})
	if err != nil {
		slog.Debug("failed to list unit files", "unit", unit, "error", err)
		return ""
	}
	for _, f := range files {
		if strings.HasSuffix(f.Path, "/"+unit) {
			return f.Type
		}
	}
	return ""
}

func (l *Linux) unitStatus(ctx context.Context, name string) *dbus.UnitStatus {
	c := l.conn(ctx)
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaults.SystemdTimeout)
	defer cancel()

	unit := unitName(name)
	st, err := c.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil || len(st) == 0 {
		slog.Debug("failed to query unit", "unit", unit, "error", err)
		return nil
	}
	if st[0].LoadState == "not-found" {
		return nil
	}
	return &st[0]
}

// IsService implements Policy.
func (l *Linux) IsService(ctx context.Context, name string) bool {
	return l.unitFileState(ctx, name) != "" || l.unitStatus(ctx, name) != nil
}

// ServiceEnabled implements Policy.
func (l *Linux) ServiceEnabled(ctx context.Context, name string) bool {
	return l.unitFileState(ctx, name) == "enabled"
}

// ServiceDisabled implements Policy.
func (l *Linux) ServiceDisabled(ctx context.Context, name string) bool {
	return l.unitFileState(ctx, name) == "disabled"
}

// ServiceRunning implements Policy.
func (l *Linux) ServiceRunning(ctx context.Context, name string) bool {
	return l.ServiceStatus(ctx, name) == "active"
}

// ServiceStatus implements Policy.
func (l *Linux) ServiceStatus(ctx context.Context, name string) string {
	st := l.unitStatus(ctx, name)
	if st == nil {
		return ServiceMissing
	}
	return st.ActiveState
}
