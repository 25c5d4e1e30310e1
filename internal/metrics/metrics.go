// Package metrics registers the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region collectors

var (
	// SyncRuns counts orchestrator runs by terminal status.
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity_engine",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Sync orchestrator runs by terminal job status.",
	}, []string{"status"})

	// ModuleOutcomes counts per-module terminal statuses.
	ModuleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity_engine",
		Subsystem: "sync",
		Name:      "module_outcomes_total",
		Help:      "Module sync outcomes by module and terminal status.",
	}, []string{"module", "status"})

	// ModuleDuration observes wall-clock seconds per module run.
	ModuleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "identity_engine",
		Subsystem: "sync",
		Name:      "module_duration_seconds",
		Help:      "Module sync duration from in_progress to terminal.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"module"})

	// SnapshotsCreated counts version snapshots by type.
	SnapshotsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity_engine",
		Subsystem: "state",
		Name:      "snapshots_created_total",
		Help:      "Version snapshots created by type (auto, manual).",
	}, []string{"type"})

	// FeedbackProcessed counts learning feedback by rating.
	FeedbackProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity_engine",
		Subsystem: "learning",
		Name:      "feedback_processed_total",
		Help:      "Feedback entries folded into learning state, by rating.",
	}, []string{"rating"})
)

// #endregion collectors
