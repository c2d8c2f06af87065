// Package metrics provides Prometheus metrics for the synchronization loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync loop metrics
var (
	// reparseTotal records reparse outcomes.
	// Labels:
	//   - result: "applied", "unchanged", "removed", "discarded", "failed"
	reparseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgsync_reparse_total",
			Help: "Total number of document reparses by outcome",
		},
		[]string{"result"},
	)

	// reparseDuration records read + parse + apply time.
	// Buckets: 1ms .. 5s
	reparseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orgsync_reparse_duration_seconds",
			Help:    "Duration of document reparses in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// failuresTotal records per-path failures by error kind.
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgsync_path_failures_total",
			Help: "Total number of per-path failures by kind",
		},
		[]string{"kind"},
	)

	// headlineChanges records headline ids reported in change records.
	// Labels:
	//   - change: "new", "updated", "deleted"
	headlineChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orgsync_headline_changes_total",
			Help: "Total number of headline changes emitted on the change feed",
		},
		[]string{"change"},
	)

	notificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orgsync_notifications_total",
			Help: "Total number of accepted file change notifications",
		},
	)

	documentsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orgsync_documents_loaded",
			Help: "Number of documents currently held in the repository",
		},
	)

	prunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orgsync_documents_pruned_total",
			Help: "Total number of documents pruned after a coverage change",
		},
	)
)

func init() {
	prometheus.MustRegister(reparseTotal)
	prometheus.MustRegister(reparseDuration)
	prometheus.MustRegister(failuresTotal)
	prometheus.MustRegister(headlineChanges)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(documentsLoaded)
	prometheus.MustRegister(prunedTotal)
}

// RecordReparse records a reparse outcome and its duration in seconds.
func RecordReparse(result string, durationSeconds float64) {
	reparseTotal.WithLabelValues(result).Inc()
	reparseDuration.Observe(durationSeconds)
}

// RecordFailure records a per-path failure of the given kind.
func RecordFailure(kind string) {
	failuresTotal.WithLabelValues(kind).Inc()
}

// RecordChanges records the headline counts of one change record.
func RecordChanges(added, updated, deleted int) {
	headlineChanges.WithLabelValues("new").Add(float64(added))
	headlineChanges.WithLabelValues("updated").Add(float64(updated))
	headlineChanges.WithLabelValues("deleted").Add(float64(deleted))
}

// RecordNotification records an accepted change notification.
func RecordNotification() {
	notificationsTotal.Inc()
}

// RecordPruned records documents removed by a coverage change.
func RecordPruned(n int) {
	prunedTotal.Add(float64(n))
}

// SetDocuments sets the loaded document gauge.
func SetDocuments(n int) {
	documentsLoaded.Set(float64(n))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
