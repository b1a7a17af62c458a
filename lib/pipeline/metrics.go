// Copyright 2025 The ner-model Authors
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

package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	textsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ner_model",
			Subsystem: "pipeline",
			Name:      "texts_processed_total",
			Help:      "The total number of input texts processed.",
		},
		[]string{"mode"}, // batch, single
	)

	entitiesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ner_model",
			Subsystem: "pipeline",
			Name:      "entities_emitted_total",
			Help:      "The total number of entity surfaces emitted.",
		},
		[]string{"label"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ner_model",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time taken by a pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // prepare, english, chinese, extract
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ner_model",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits.",
		},
	)

	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ner_model",
			Subsystem: "pipeline",
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses.",
		},
	)
)

func init() {
	prometheus.MustRegister(textsProcessed)
	prometheus.MustRegister(entitiesEmitted)
	prometheus.MustRegister(stageDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

// RecordTextsProcessed adds to the processed-texts counter.
func RecordTextsProcessed(mode string, count int) {
	textsProcessed.WithLabelValues(mode).Add(float64(count))
}

// RecordEntitiesEmitted adds to the emitted-entities counter.
func RecordEntitiesEmitted(label string, count int) {
	entitiesEmitted.WithLabelValues(label).Add(float64(count))
}

// RecordStageDuration records how long a pipeline stage took.
func RecordStageDuration(stage string, seconds float64) {
	stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordCacheHit increments the result cache hit counter.
func RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss increments the result cache miss counter.
func RecordCacheMiss() {
	cacheMisses.Inc()
}
