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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NVIDIA/diagpack/pkg/errors"
)

var (
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagpack_run_duration_seconds",
			Help:    "Time taken by a complete collection run",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 1800},
		},
	)

	pluginsSelected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diagpack_plugins_selected",
			Help: "Number of plugins selected in the last run",
		},
	)

	pluginCollectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diagpack_plugin_collect_duration_seconds",
			Help:    "Time taken by a plugin's collection phase",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"plugin"},
	)

	pluginRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagpack_plugin_runs_total",
			Help: "Plugin runs by outcome",
		},
		[]string{"plugin", "status"}, // ok, timeout or failed
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagpack_commands_total",
			Help: "Commands executed by plugins by exit status class",
		},
		[]string{"plugin", "result"}, // ok, error, timeout or missing
	)

	filesCopiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagpack_files_copied_total",
			Help: "Files and links copied into the archive",
		},
		[]string{"plugin"},
	)
)

const (
	statusOK      = "ok"
	statusTimeout = "timeout"
	statusFailed  = "failed"
)

func commandResult(status int) string {
	switch status {
	case 0:
		return "ok"
	case 124:
		return "timeout"
	case 126, 127:
		return "missing"
	default:
		return "error"
	}
}

// WriteMetrics writes the default registry in the node exporter textfile
// format.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to write metrics file", err)
	}
	return nil
}
