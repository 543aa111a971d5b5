package loadgen

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/common/util"
	"github.com/memebattle/scaleprobe/internal/fleet"
)

type ControllerConfig struct {
	Stream   string
	Consumer string
	Target   fleet.Target
	Cycle    CycleParams
	// Wait between the end of a cycle's load and the after measurement.
	ReactionPause time.Duration
	// Pause before the next cycle while the fleet is at or below PodThreshold.
	ShortPause time.Duration
	// Pause before the next cycle once the fleet has grown past PodThreshold.
	ExtendedPause time.Duration
	PodThreshold  uint64
	// Number of cycles to run. Zero runs until the context is cancelled.
	MaxCycles uint64
}

// Snapshot is the fleet and consumer state measured on one side of a cycle.
type Snapshot struct {
	Fleet    fleet.State          `json:"fleet"`
	Consumer broker.ConsumerStats `json:"consumer"`
}

// CycleReport describes one iteration of the load cycle. It is not modified after being handed out.
type CycleReport struct {
	RunId             string                  `json:"runId"`
	CycleId           uint64                  `json:"cycleId"`
	Timestamp         time.Time               `json:"timestamp"`
	Before            Snapshot                `json:"before"`
	MessagesSent      uint64                  `json:"messagesSent"`
	MessagesAttempted uint64                  `json:"messagesAttempted"`
	After             Snapshot                `json:"after"`
	Scaled            bool                    `json:"scaled"`
	ExtendedPause     bool                    `json:"extendedPause"`
	NextPause         time.Duration           `json:"nextPause"`
	Scaler            *fleet.ScalerStatus     `json:"scaler,omitempty"`
	Autoscaler        *fleet.AutoscalerStatus `json:"autoscaler,omitempty"`
	MeasurementErrors []string                `json:"measurementErrors,omitempty"`
}

// Scaled reports whether the fleet grew between the two snapshots.
func Scaled(before Snapshot, after Snapshot) bool {
	return after.Fleet.PodCount > before.Fleet.PodCount
}

// NextPause picks the pause before the next cycle from the pod count measured after the load.
// Exceeding the threshold selects the extended pause.
func NextPause(config ControllerConfig, podCount uint64) (time.Duration, bool) {
	if podCount > config.PodThreshold {
		return config.ExtendedPause, true
	}
	return config.ShortPause, false
}

type ReportHandler func(report *CycleReport)

type ControllerOption func(*LoadCycleController)

func WithControllerClock(clk clock.Clock) ControllerOption {
	return func(c *LoadCycleController) {
		c.clock = clk
	}
}

func WithReportHandler(handler ReportHandler) ControllerOption {
	return func(c *LoadCycleController) {
		c.onReport = handler
	}
}

func WithRunId(runId string) ControllerOption {
	return func(c *LoadCycleController) {
		c.runId = runId
	}
}

// LoadCycleController repeatedly generates a cycle of load and measures how the fleet reacts.
// Measurement is best effort: a failed query leaves the affected field unknown and never stops load.
type LoadCycleController struct {
	scheduler *BurstScheduler
	broker    broker.Client
	inspector fleet.Inspector
	config    ControllerConfig
	prompts   []string
	clock     clock.Clock
	runId     string
	onReport  ReportHandler
}

func NewLoadCycleController(
	scheduler *BurstScheduler,
	client broker.Client,
	inspector fleet.Inspector,
	config ControllerConfig,
	prompts []string,
	opts ...ControllerOption,
) *LoadCycleController {
	c := &LoadCycleController{
		scheduler: scheduler,
		broker:    client,
		inspector: inspector,
		config:    config,
		prompts:   prompts,
		clock:     clock.RealClock{},
		runId:     uuid.NewString(),
		onReport:  func(*CycleReport) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run loops until ctx is cancelled, returning ctx.Err(), or until MaxCycles cycles have completed,
// returning nil.
func (c *LoadCycleController) Run(ctx context.Context) error {
	if err := c.config.Cycle.Validate(); err != nil {
		return err
	}
	log.WithField("runId", c.runId).Infof(
		"Starting load generation: batch size %d, %d parallel senders, %d bursts per cycle",
		c.config.Cycle.BatchSize, c.config.Cycle.Parallelism, c.config.Cycle.Bursts)

	for cycleId := uint64(1); c.config.MaxCycles == 0 || cycleId <= c.config.MaxCycles; cycleId++ {
		report, err := c.RunCycle(ctx, cycleId)
		if err != nil {
			return err
		}
		c.onReport(report)

		if c.config.MaxCycles != 0 && cycleId == c.config.MaxCycles {
			break
		}
		if err := util.Sleep(ctx, c.clock, report.NextPause); err != nil {
			return err
		}
	}
	return nil
}

// RunCycle performs a single measure, load, measure iteration and decides the following pause.
// It does not sleep for that pause.
func (c *LoadCycleController) RunCycle(ctx context.Context, cycleId uint64) (*CycleReport, error) {
	logger := log.WithFields(log.Fields{"runId": c.runId, "cycle": cycleId})
	report := &CycleReport{
		RunId:     c.runId,
		CycleId:   cycleId,
		Timestamp: c.clock.Now(),
	}

	logger.Infof("===== Load Generation Cycle #%d =====", cycleId)
	report.Before = c.measure(ctx, logger, report)

	params := c.config.Cycle
	logger.Infof("Sending %d bursts of %d messages using %d parallel senders...", params.Bursts, params.BatchSize, params.Parallelism)
	result, err := c.scheduler.RunCycle(ctx, params, c.prompts)
	report.MessagesSent = result.Sent
	report.MessagesAttempted = result.Attempted
	if err != nil {
		return nil, err
	}
	logger.Infof("Sent total of %d/%d messages, waiting to see scaling...", result.Sent, result.Attempted)

	if err := util.Sleep(ctx, c.clock, c.config.ReactionPause); err != nil {
		return nil, err
	}

	report.After = c.measure(ctx, logger, report)
	report.Scaled = Scaled(report.Before, report.After)
	if report.Scaled {
		logger.Infof("Scaling detected! Pods increased from %d to %d", report.Before.Fleet.PodCount, report.After.Fleet.PodCount)
	} else {
		logger.Info("No scaling yet, continuing to generate load...")
	}

	report.NextPause, report.ExtendedPause = NextPause(c.config, report.After.Fleet.PodCount)
	if report.ExtendedPause {
		logger.Infof("%d pods exceed the threshold of %d, pausing %s to observe behaviour", report.After.Fleet.PodCount, c.config.PodThreshold, report.NextPause)
		c.observeAutoscaler(ctx, logger, report)
	}
	recordCycle(report)
	return report, nil
}

func (c *LoadCycleController) measure(ctx context.Context, logger *log.Entry, report *CycleReport) Snapshot {
	snapshot := Snapshot{}

	podCount, err := c.inspector.PodCount(ctx, c.config.Target.Namespace, c.config.Target.PodSelector)
	if err != nil {
		c.recordError(logger, report, "Error getting pod count", err)
	}
	snapshot.Fleet.PodCount = podCount

	consumer, err := c.broker.ConsumerInfo(ctx, c.config.Stream, c.config.Consumer)
	if err != nil {
		c.recordError(logger, report, "Error getting queue status", err)
	}
	snapshot.Consumer = consumer
	return snapshot
}

func (c *LoadCycleController) observeAutoscaler(ctx context.Context, logger *log.Entry, report *CycleReport) {
	target := c.config.Target
	if target.ScaledObject != "" {
		scaler, err := c.inspector.ScalerStatus(ctx, target.Namespace, target.ScaledObject)
		if err != nil {
			c.recordError(logger, report, "Error getting scaler status", err)
		} else {
			report.Scaler = &scaler
		}
	}
	if target.Autoscaler != "" {
		autoscaler, err := c.inspector.AutoscalerStatus(ctx, target.Namespace, target.Autoscaler)
		if err != nil {
			c.recordError(logger, report, "Error getting autoscaler status", err)
		} else {
			report.Autoscaler = &autoscaler
			report.After.Fleet.CurrentReplicas = autoscaler.CurrentReplicas
			report.After.Fleet.DesiredReplicas = autoscaler.DesiredReplicas
		}
	}
	if report.Scaler != nil {
		report.After.Fleet.Conditions = report.Scaler.Conditions
	}
}

func (c *LoadCycleController) recordError(logger *log.Entry, report *CycleReport, msg string, err error) {
	logging.WithStacktrace(logger, err).Warn(msg)
	recordMeasurementError(err)
	report.MeasurementErrors = append(report.MeasurementErrors, err.Error())
}
