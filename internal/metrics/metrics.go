/*
Copyright The indexctl Contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics contains the metrics of the update runs. They are
// written to a node exporter textfile when the run ends
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/indexctl/indexctl/internal/cluster"
)

// Result is the outcome of a run or an operation
type Result string

// Outcomes used as metric labels
const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

func resultOf(success bool) Result {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// Registry is the registry of the indexctl metrics
var Registry = prometheus.NewRegistry()

var (
	// RunsTotal counts the update runs by mode and result
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexctl_runs_total",
			Help: "Total number of update runs",
		},
		[]string{"application", "mode", "result"},
	)

	// LastRunTimestamp is the time of the last completed run
	LastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexctl_last_run_timestamp_seconds",
			Help: "Unix time of the last completed update run",
		},
		[]string{"application", "mode", "result"},
	)

	// StageDuration measures how long every stage of a run took
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "indexctl_stage_duration_seconds",
			Help: "Duration of the stages of the update runs in seconds",
			Buckets: []float64{
				1, 10, 30, 60, 300, 600, 1800, 3600, 7200,
			},
		},
		[]string{"application", "stage"},
	)

	// BarrierCyclesTotal counts the poll cycles of the completion barriers
	BarrierCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexctl_barrier_cycles_total",
			Help: "Total number of poll cycles of the completion barriers",
		},
		[]string{"application", "stage"},
	)

	// EngineAppliesTotal counts the indexes and updates applied to the engines
	EngineAppliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexctl_engine_applies_total",
			Help: "Total number of indexes and partial updates applied to the engines",
		},
		[]string{"application", "stage", "engine", "result"},
	)
)

func init() {
	Registry.MustRegister(
		RunsTotal,
		LastRunTimestamp,
		StageDuration,
		BarrierCyclesTotal,
		EngineAppliesTotal,
	)
}

// RecordRun records the end of an update run
func RecordRun(appID, mode string, success bool, at time.Time) {
	result := string(resultOf(success))
	RunsTotal.WithLabelValues(appID, mode, result).Inc()
	LastRunTimestamp.WithLabelValues(appID, mode, result).Set(float64(at.Unix()))
}

// RecordStageDuration records the duration of a stage of a run
func RecordStageDuration(appID, stage string, duration time.Duration) {
	StageDuration.WithLabelValues(appID, stage).Observe(duration.Seconds())
}

// WriteToTextfile writes every metric to the passed file, in the
// format read by the node exporter textfile collector
func WriteToTextfile(fileName string) error {
	return prometheus.WriteToTextfile(fileName, Registry)
}

// Observer records the progress of the cluster-wide operations
// of an application
type Observer struct {
	AppID string
}

// BarrierCycle implements cluster.Observer
func (o Observer) BarrierCycle(stage cluster.Stage) {
	BarrierCyclesTotal.WithLabelValues(o.AppID, string(stage)).Inc()
}

// EngineApplied implements cluster.Observer
func (o Observer) EngineApplied(stage cluster.Stage, engineID string, success bool) {
	EngineAppliesTotal.WithLabelValues(o.AppID, string(stage), engineID, string(resultOf(success))).Inc()
}

var _ cluster.Observer = Observer{}
