package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	capacityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nightguard_current_capacity",
		Help: "Current venue occupancy derived from the live session.",
	}, []string{"venue"})

	syncWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightguard_sync_write_failures_total",
		Help: "Remote writes that failed and were absorbed optimistically.",
	})

	syncDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightguard_sync_disconnects_total",
		Help: "Realtime subscription drops that triggered offline fallback.",
	})
)

func setCapacityGauge(venueID string, capacity int) {
	capacityGauge.WithLabelValues(venueID).Set(float64(capacity))
}

func recordSyncWriteFailure() { syncWriteFailures.Inc() }

func recordSyncDisconnect() { syncDisconnects.Inc() }
