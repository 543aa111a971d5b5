package scaleprobe

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/common/metrics"
	"github.com/memebattle/scaleprobe/internal/loadgen"
)

// Load generates cycles of burst load until ctx is cancelled or the configured number of cycles
// has run, printing a report after each cycle. Cancellation is a normal way to stop and is not
// returned as an error.
func (a *App) Load(ctx context.Context) error {
	if err := a.Params.ValidateLoad(); err != nil {
		return err
	}
	prompts, err := loadgen.LoadPrompts(a.Params.Prompts)
	if err != nil {
		return err
	}
	if len(prompts) > 0 {
		log.Infof("Loaded %d prompts from %s", len(prompts), a.Params.Prompts)
	}

	s, err := a.connect(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	stopMetrics := metrics.ServeMetrics(a.Params.MetricsPort)
	defer stopMetrics()

	scheduler := loadgen.NewBurstScheduler(s.broker, loadgen.SchedulerConfig{
		Subject:         a.Params.Subject,
		MessageInterval: a.Params.EffectiveMessageInterval(),
		InterBurstPause: a.Params.InterBurstPause,
		FastMode:        a.Params.FastMode,
		SmallImage:      a.Params.SmallImage,
	}, loadgen.WithSchedulerClock(a.Clock))

	out := newRenderer(a.Params.Output, a.Out, a.Params.Stream)
	controller := loadgen.NewLoadCycleController(scheduler, s.broker, s.inspector, loadgen.ControllerConfig{
		Stream:   a.Params.Stream,
		Consumer: a.Params.Consumer,
		Target:   a.target(),
		Cycle: loadgen.CycleParams{
			Parallelism: a.Params.Parallel,
			BatchSize:   a.Params.BatchSize,
			Bursts:      a.Params.Bursts,
		},
		ReactionPause: a.Params.BatchPause,
		ShortPause:    a.Params.ShortPause,
		ExtendedPause: a.Params.ExtendedPause,
		PodThreshold:  a.Params.PodThreshold,
		MaxCycles:     a.Params.Cycles,
	}, prompts,
		loadgen.WithControllerClock(a.Clock),
		loadgen.WithReportHandler(func(report *loadgen.CycleReport) {
			if err := out.CycleReport(report); err != nil {
				logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("Error writing cycle report")
			}
		}))

	err = controller.Run(ctx)
	if isInterrupted(err) {
		log.Info("Load generation stopped")
		return nil
	}
	return err
}
