// Package monitor periodically samples the stream and the worker fleet without changing either.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/fleet"
)

const DefaultInterval = 2 * time.Second

type Config struct {
	Stream   string
	Target   fleet.Target
	Interval time.Duration
}

// Sample is one observation of the system. Histories are oldest first and include this sample.
type Sample struct {
	Time           time.Time              `json:"time"`
	Stream         broker.StreamStats     `json:"stream"`
	Fleet          fleet.State            `json:"fleet"`
	Scaler         fleet.ScalerStatus     `json:"scaler"`
	Autoscaler     fleet.AutoscalerStatus `json:"autoscaler"`
	KedaActive     fleet.ConditionStatus  `json:"kedaActive"`
	PodHistory     []uint64               `json:"podHistory"`
	MessageHistory []uint64               `json:"messageHistory"`
	Errors         []string               `json:"errors,omitempty"`
}

type SampleHandler func(sample Sample)

type Sampler struct {
	broker    broker.Client
	inspector fleet.Inspector
	config    Config
	clock     clock.WithTicker

	mutex          sync.Mutex
	podHistory     *RollingHistory[uint64]
	messageHistory *RollingHistory[uint64]
}

func NewSampler(client broker.Client, inspector fleet.Inspector, config Config, c clock.WithTicker) *Sampler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Sampler{
		broker:         client,
		inspector:      inspector,
		config:         config,
		clock:          c,
		podHistory:     NewRollingHistory[uint64](DefaultHistoryCapacity),
		messageHistory: NewRollingHistory[uint64](DefaultHistoryCapacity),
	}
}

// Sample queries the stream and fleet once. Failed queries leave their fields unknown and are listed
// in Sample.Errors. The pod count is always appended to the pod history, reading zero if it could
// not be fetched; the message count is appended only when known.
func (s *Sampler) Sample(ctx context.Context) Sample {
	sample := Sample{Time: s.clock.Now()}

	stream, err := s.broker.StreamInfo(ctx, s.config.Stream)
	if err != nil {
		logging.WithStacktrace(log.WithField("stream", s.config.Stream), err).Warn("Error getting stream info")
		sample.Errors = append(sample.Errors, err.Error())
	}
	sample.Stream = stream

	obs, err := fleet.Observe(ctx, s.inspector, s.config.Target)
	if err != nil {
		for _, e := range flatten(err) {
			logging.WithStacktrace(log.WithField("namespace", s.config.Target.Namespace), e).Warn("Error observing fleet")
			sample.Errors = append(sample.Errors, e.Error())
		}
	}
	sample.Fleet = obs.State
	sample.Scaler = obs.Scaler
	sample.Autoscaler = obs.Autoscaler
	sample.KedaActive = fleet.ActiveStatus(obs.Scaler.Conditions)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.podHistory.Append(sample.Fleet.PodCount)
	if sample.Stream.Messages != nil {
		s.messageHistory.Append(*sample.Stream.Messages)
	}
	sample.PodHistory = s.podHistory.Values()
	sample.MessageHistory = s.messageHistory.Values()

	recordSample(sample)
	return sample
}

// Run samples immediately and then every configured interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context, handler SampleHandler) error {
	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	handler(s.Sample(ctx))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			handler(s.Sample(ctx))
		}
	}
}

func flatten(err error) []error {
	if merr, ok := err.(*multierror.Error); ok {
		return merr.Errors
	}
	return []error{err}
}
