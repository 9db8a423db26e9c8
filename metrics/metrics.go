// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
//                Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"fmt"

	"squidcount/pipeline"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "squidcount"
)

// Metrics collects statistics of a single run. All the values are
// exported at the end of the run to a node_exporter textfile.
type Metrics struct {
	registry        *prometheus.Registry
	filesTotal      *prometheus.CounterVec
	linesTotal      *prometheus.CounterVec
	fileDuration    prometheus.Histogram
	cacheCorrupted  prometheus.Counter
	missingDates    prometheus.Gauge
	aggregatedCount prometheus.Gauge
	lastRunTime     prometheus.Gauge
}

// ObserveFile registers a finished file task. It is safe
// for concurrent use.
func (m *Metrics) ObserveFile(res pipeline.FileResult) {
	switch {
	case res.Err == nil:
		m.filesTotal.WithLabelValues("done").Inc()
	case res.Cancelled():
		m.filesTotal.WithLabelValues("cancelled").Inc()
	default:
		m.filesTotal.WithLabelValues("failed").Inc()
	}
	if res.Stats == nil {
		return
	}
	m.linesTotal.WithLabelValues("counted").Add(float64(res.Stats.Counted))
	m.linesTotal.WithLabelValues("malformed").Add(float64(res.Stats.Malformed))
	m.linesTotal.WithLabelValues("bad_timestamp").Add(float64(res.Stats.BadTimestamp))
	m.linesTotal.WithLabelValues("bad_netloc").Add(float64(res.Stats.BadNetloc))
	m.linesTotal.WithLabelValues("filtered").Add(float64(res.Stats.Filtered))
	m.linesTotal.WithLabelValues("bot").Add(float64(res.Stats.Bots))
	if res.Err == nil {
		m.fileDuration.Observe(res.Stats.Duration.Seconds())
	}
}

func (m *Metrics) ObserveCacheLoad(numCorrupted int) {
	m.cacheCorrupted.Add(float64(numCorrupted))
}

func (m *Metrics) ObserveAggregation(numMissingDates int, total int64) {
	m.missingDates.Set(float64(numMissingDates))
	m.aggregatedCount.Set(float64(total))
	m.lastRunTime.SetToCurrentTime()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile stores all the metrics in the Prometheus text
// format (the file is replaced atomically)
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Number of processed log files by result",
			},
			[]string{"status"},
		),
		linesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_total",
				Help:      "Number of log lines by outcome",
			},
			[]string{"outcome"},
		),
		fileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Time needed to count a single log file",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		cacheCorrupted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_corrupted_entries_total",
				Help:      "Number of cache entries skipped on reload",
			},
		),
		missingDates: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "missing_dates",
				Help:      "Number of days with no log file within the processed range",
			},
		),
		aggregatedCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "aggregated_views",
				Help:      "Sum of all rescaled counts in the last output",
			},
		),
		lastRunTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Time of the last finished aggregation",
			},
		),
	}
}
