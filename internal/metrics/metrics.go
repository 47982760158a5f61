// Package metrics exposes Prometheus collectors for ingestion, the NLP
// pipeline and search.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offersIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobmatch_offers_ingested_total",
		Help: "Offers read from an ingestion source, by source and outcome (inserted, duplicate, rejected)",
	}, []string{"source", "outcome"})

	offersEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobmatch_offers_embedded_total",
		Help: "Offers that received embeddings and a cluster through incremental processing",
	})

	fitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobmatch_fit_duration_seconds",
		Help:    "Duration of full model fits",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"stage"})

	fitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobmatch_fit_failures_total",
		Help: "Failed pipeline stages",
	}, []string{"stage"})

	modelEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobmatch_model_epoch",
		Help: "Epoch of the most recently installed model",
	})

	searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobmatch_searches_total",
		Help: "Searches served, by mode (ranked, latest)",
	}, []string{"mode"})

	searchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobmatch_search_latency_seconds",
		Help:    "Search latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	staleFeedback = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobmatch_stale_feedback_total",
		Help: "Feedback vectors skipped because they came from another reducer epoch or had the wrong length",
	})

	namerFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobmatch_cluster_namer_fallbacks_total",
		Help: "Cluster naming calls that failed or were short-circuited and left clusters unnamed",
	})
)

func RecordIngested(source, outcome string) {
	offersIngested.WithLabelValues(source, outcome).Inc()
}

func RecordEmbedded(n int) {
	offersEmbedded.Add(float64(n))
}

// RecordFit observes the duration of a pipeline stage; failed stages are
// counted instead.
func RecordFit(stage string, start time.Time, err error) {
	if err != nil {
		fitFailures.WithLabelValues(stage).Inc()
		return
	}
	fitDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func SetModelEpoch(epoch int64) {
	modelEpoch.Set(float64(epoch))
}

func RecordSearch(mode string, start time.Time) {
	searches.WithLabelValues(mode).Inc()
	searchLatency.Observe(time.Since(start).Seconds())
}

func RecordStaleFeedback() {
	staleFeedback.Inc()
}

func RecordNamerFallback() {
	namerFallbacks.Inc()
}
