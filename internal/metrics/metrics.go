// Package metrics holds the Prometheus collectors of the node and the collector.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
	ResultFailed  = "failed"
)

var (
	// Node metrics
	SamplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capteur_samples_total",
		Help: "Sensor read attempts by result",
	}, []string{"result"})
	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capteur_publish_total",
		Help: "Publish cycles by result",
	}, []string{"result"})
	AssociationAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capteur_association_attempts_total",
		Help: "Wi-Fi association attempts, successful or not",
	})
	BringupState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capteur_bringup_state",
		Help: "Current network bring-up state (ordinal)",
	})
	ClockSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capteur_clock_sync_total",
		Help: "Clock synchronization outcomes by result",
	}, []string{"result"})
	ClockReadErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capteur_clock_read_errors_total",
		Help: "Failed hardware clock reads in the publisher loop",
	})

	// Collector metrics
	MeasuresReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_measures_received_total",
		Help: "Measures received on POST /measure by result",
	}, []string{"result"})
	SinkWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_sink_writes_total",
		Help: "Mirror sink writes by sink and result",
	}, []string{"sink", "result"})

	registerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SamplesTotal,
			PublishTotal,
			AssociationAttemptsTotal,
			BringupState,
			ClockSyncTotal,
			ClockReadErrorsTotal,
			MeasuresReceivedTotal,
			SinkWritesTotal,
		)
	})
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
