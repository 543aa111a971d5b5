package loadgen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/memebattle/scaleprobe/internal/common/metrics"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

var messagesAttemptedCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metrics.MetricsPrefix + "messages_attempted_total",
		Help: "Number of publish attempts made by load senders",
	},
)

var messagesSentCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metrics.MetricsPrefix + "messages_sent_total",
		Help: "Number of messages the broker acknowledged",
	},
)

var burstDurationHist = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    metrics.MetricsPrefix + "burst_duration_seconds",
		Help:    "Time taken for all senders in a burst to finish",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	},
)

var cyclesCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metrics.MetricsPrefix + "load_cycles_total",
		Help: "Number of completed load cycles by outcome",
	},
	[]string{"outcome"},
)

var observedPodsGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: metrics.MetricsPrefix + "load_observed_pods",
		Help: "Worker pod count measured before and after the most recent burst cycle",
	},
	[]string{"phase"},
)

var measurementErrorsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metrics.MetricsPrefix + "measurement_errors_total",
		Help: "Number of failed broker or cluster queries made while measuring a cycle",
	},
	[]string{"kind"},
)

func recordMeasurementError(err error) {
	kind := "other"
	if probeerrors.IsTransport(err) {
		kind = "transport"
	}
	measurementErrorsCounter.WithLabelValues(kind).Inc()
}

func recordCycle(report *CycleReport) {
	outcome := "unchanged"
	if report.Scaled {
		outcome = "scaled"
	}
	cyclesCounter.WithLabelValues(outcome).Inc()
	observedPodsGauge.WithLabelValues("before").Set(float64(report.Before.Fleet.PodCount))
	observedPodsGauge.WithLabelValues("after").Set(float64(report.After.Fleet.PodCount))
}
