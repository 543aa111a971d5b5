package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/memebattle/scaleprobe/internal/common/metrics"
	"github.com/memebattle/scaleprobe/internal/fleet"
)

var streamMessagesGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: metrics.MetricsPrefix + "stream_messages",
		Help: "Messages held by the stream at the last sample",
	},
)

var podsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: metrics.MetricsPrefix + "fleet_pods",
		Help: "Running worker pods at the last sample",
	},
)

var desiredReplicasGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: metrics.MetricsPrefix + "fleet_desired_replicas",
		Help: "Replicas the autoscaler wanted at the last sample",
	},
)

var scalerActiveGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: metrics.MetricsPrefix + "scaler_active",
		Help: "1 if the scaler reported itself active at the last sample, 0 otherwise",
	},
)

var sampleErrorsCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metrics.MetricsPrefix + "sample_errors_total",
		Help: "Number of failed queries while sampling",
	},
)

// Unknown values leave their gauge at its previous reading.
func recordSample(sample Sample) {
	podsGauge.Set(float64(sample.Fleet.PodCount))
	if sample.Stream.Messages != nil {
		streamMessagesGauge.Set(float64(*sample.Stream.Messages))
	}
	if sample.Fleet.DesiredReplicas != nil {
		desiredReplicasGauge.Set(float64(*sample.Fleet.DesiredReplicas))
	}
	if sample.KedaActive == fleet.ConditionTrue {
		scalerActiveGauge.Set(1)
	} else {
		scalerActiveGauge.Set(0)
	}
	sampleErrorsCounter.Add(float64(len(sample.Errors)))
}
