package scaleprobe

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/common/metrics"
	"github.com/memebattle/scaleprobe/internal/monitor"
)

// Monitor samples the stream and the fleet every MonitorInterval until ctx is cancelled.
// It never publishes or purges.
func (a *App) Monitor(ctx context.Context) error {
	if err := a.Params.Validate(); err != nil {
		return err
	}
	s, err := a.connect(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	stopMetrics := metrics.ServeMetrics(a.Params.MetricsPort)
	defer stopMetrics()

	out := newRenderer(a.Params.Output, a.Out, a.Params.Stream)
	sampler := monitor.NewSampler(s.broker, s.inspector, monitor.Config{
		Stream:   a.Params.Stream,
		Target:   a.target(),
		Interval: a.Params.MonitorInterval,
	}, a.Clock)

	err = sampler.Run(ctx, func(sample monitor.Sample) {
		if err := out.Sample(sample); err != nil {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("Error writing sample")
		}
	})
	if isInterrupted(err) {
		return nil
	}
	return err
}
