package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Uptime stores the timestamp of the Worker boot
	Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispinmap_worker_boot_timestamp_seconds",
		Help: "Unix timestamp of the worker boot",
	})

	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispinmap_scheduler_ticks_total",
		Help: "Number of completed scheduler ticks",
	})

	TickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispinmap_scheduler_errors_total",
		Help: "Number of errors recorded during scheduler ticks",
	})

	ChannelChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispinmap_channel_checks_total",
		Help: "Number of channel checks by mode and result",
	}, []string{"mode", "result"})

	TargetFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispinmap_target_fetch_failures_total",
		Help: "Number of failed submission fetches by target type",
	}, []string{"target_type"})

	SubmissionsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispinmap_submissions_delivered_total",
		Help: "Number of submissions delivered by automatic polls",
	})
)

// Init starts metrics collection
func Init() {
	Uptime.Set(float64(time.Now().Unix()))
}
