/*
 *     Copyright 2022 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/version"
)

// Variables declared for metrics.
var (
	JobCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.WorkerMetricsName,
		Name:      "job_total",
		Help:      "Counter of the number of the training jobs.",
	}, []string{"mode"})

	JobFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.WorkerMetricsName,
		Name:      "job_failure_total",
		Help:      "Counter of the number of failed of the training jobs.",
	}, []string{"mode"})

	TrainDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.WorkerMetricsName,
		Name:      "train_duration_seconds",
		Help:      "Histogram of the time each model training took.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"mode"})

	RoundCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SearchMetricsName,
		Name:      "round_total",
		Help:      "Counter of the number of the search rounds.",
	}, []string{"mode"})

	SearchCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SearchMetricsName,
		Name:      "search_total",
		Help:      "Counter of the number of the searches.",
	}, []string{"mode"})

	SearchFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SearchMetricsName,
		Name:      "search_failure_total",
		Help:      "Counter of the number of failed of the searches.",
	}, []string{"mode"})

	BestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SearchMetricsName,
		Name:      "best_score",
		Help:      "Gauge of the best score of the last search.",
	}, []string{"mode", "evaluator"})

	VersionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: types.MetricsNamespace,
		Subsystem: types.SearchMetricsName,
		Name:      "version",
		Help:      "Version info of the service.",
	}, []string{"major", "minor", "git_version", "git_commit", "platform", "build_time", "go_version"})
)

func New(cfg *config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	VersionGauge.WithLabelValues(version.Major, version.Minor, version.GitVersion, version.GitCommit, version.Platform, version.BuildTime, version.GoVersion).Set(1)
	return &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
}
