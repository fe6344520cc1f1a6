// Package metrics holds the Prometheus collectors of the notebook service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jotter"

var (
	// NotesActive is the number of notes currently held in memory.
	NotesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notes_active",
		Help:      "Active notes held in memory",
	})

	NotesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notes_created_total",
		Help:      "Notes created",
	})

	NotesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notes_deleted_total",
		Help:      "Notes deleted or discarded",
	})

	// Saves counts Save calls. Labels: result (ok, error)
	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "saves_total",
		Help:      "Notebook saves by result",
	}, []string{"result"})

	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "save_duration_seconds",
		Help:      "Time spent writing dirty partitions",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	PartitionsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partitions_loaded_total",
		Help:      "Partition files read into memory",
	})

	Queries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Note queries served",
	})
)

// ObserveSave records one Save call that started at start.
func ObserveSave(start time.Time, err error) {
	SaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		Saves.WithLabelValues("error").Inc()
		return
	}
	Saves.WithLabelValues("ok").Inc()
}
