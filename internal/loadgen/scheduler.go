package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
	"github.com/memebattle/scaleprobe/internal/common/util"
)

type SchedulerConfig struct {
	Subject string
	// Delay between consecutive messages from one sender.
	MessageInterval time.Duration
	// Pause between bursts of a cycle. Not applied after the last burst.
	InterBurstPause time.Duration
	FastMode        bool
	SmallImage      bool
}

// CycleParams describes the shape of one load cycle.
type CycleParams struct {
	Parallelism int
	BatchSize   int
	Bursts      int
}

// MessagesPerSender is BatchSize / Parallelism. Any remainder is not sent.
func (p CycleParams) MessagesPerSender() int {
	if p.Parallelism <= 0 {
		return 0
	}
	return p.BatchSize / p.Parallelism
}

// ExpectedAttempts is the number of publish attempts a complete cycle makes.
func (p CycleParams) ExpectedAttempts() uint64 {
	if p.Bursts <= 0 {
		return 0
	}
	return uint64(p.Parallelism) * uint64(p.Bursts) * uint64(p.MessagesPerSender())
}

func (p CycleParams) Validate() error {
	if p.Parallelism < 1 {
		return errors.WithStack(&probeerrors.ErrInvalidArgument{Name: "parallel", Value: p.Parallelism, Message: "must be at least 1"})
	}
	if p.Bursts < 1 {
		return errors.WithStack(&probeerrors.ErrInvalidArgument{Name: "bursts", Value: p.Bursts, Message: "must be at least 1"})
	}
	if p.BatchSize < 0 {
		return errors.WithStack(&probeerrors.ErrInvalidArgument{Name: "batchSize", Value: p.BatchSize, Message: "must not be negative"})
	}
	return nil
}

type CycleResult struct {
	Sent      uint64
	Attempted uint64
}

// BurstObserver is told when each burst of a cycle has fully completed.
type BurstObserver func(burst int, result CycleResult)

type SchedulerOption func(*BurstScheduler)

func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *BurstScheduler) {
		s.clock = c
	}
}

// WithSeed makes prompt selection reproducible.
func WithSeed(seed int64) SchedulerOption {
	return func(s *BurstScheduler) {
		s.random = util.NewThreadsafeRand(seed)
	}
}

func WithBurstObserver(observer BurstObserver) SchedulerOption {
	return func(s *BurstScheduler) {
		s.observer = observer
	}
}

// BurstScheduler publishes one cycle of load: a number of sequential bursts, each of which
// fans out to concurrent senders and waits for all of them before the next burst starts.
type BurstScheduler struct {
	broker   broker.Client
	config   SchedulerConfig
	clock    clock.Clock
	random   *rand.Rand
	observer BurstObserver
}

func NewBurstScheduler(client broker.Client, config SchedulerConfig, opts ...SchedulerOption) *BurstScheduler {
	s := &BurstScheduler{
		broker: client,
		config: config,
		clock:  clock.RealClock{},
		random: util.NewThreadsafeRand(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle sends params.Bursts bursts of params.Parallelism concurrent senders.
// Publish failures are counted but never stop the cycle. The only error returned is the context's,
// in which case the result covers the messages attempted before cancellation.
func (s *BurstScheduler) RunCycle(ctx context.Context, params CycleParams, prompts []string) (CycleResult, error) {
	if err := params.Validate(); err != nil {
		return CycleResult{}, err
	}
	perSender := params.MessagesPerSender()
	if remainder := params.BatchSize % params.Parallelism; remainder != 0 {
		log.Warnf("Batch size %d is not divisible by %d senders; %d messages per burst will not be sent",
			params.BatchSize, params.Parallelism, remainder)
	}

	log.Infof("Sending %d messages in %d bursts of %d senders", params.ExpectedAttempts(), params.Bursts, params.Parallelism)

	total := CycleResult{}
	for burst := 1; burst <= params.Bursts; burst++ {
		log.Infof("Burst %d/%d starting...", burst, params.Bursts)
		start := s.clock.Now()
		result, err := s.runBurst(ctx, params.Parallelism, perSender, prompts)
		total.Sent += result.Sent
		total.Attempted += result.Attempted
		burstDurationHist.Observe(s.clock.Since(start).Seconds())
		if err != nil {
			return total, err
		}
		log.Infof("Burst %d/%d completed.", burst, params.Bursts)
		if s.observer != nil {
			s.observer(burst, result)
		}

		if burst < params.Bursts {
			if err := util.Sleep(ctx, s.clock, s.config.InterBurstPause); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (s *BurstScheduler) runBurst(ctx context.Context, parallelism int, perSender int, prompts []string) (CycleResult, error) {
	var sent, attempted uint64
	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= parallelism; i++ {
		senderId := i
		g.Go(func() error {
			return s.runSender(ctx, senderId, perSender, prompts, &sent, &attempted)
		})
	}
	err := g.Wait()
	return CycleResult{Sent: atomic.LoadUint64(&sent), Attempted: atomic.LoadUint64(&attempted)}, err
}

func (s *BurstScheduler) runSender(ctx context.Context, senderId int, count int, prompts []string, sent *uint64, attempted *uint64) error {
	logger := log.WithField("sender", senderId)
	logger.Debugf("Sender %d: starting to send %d messages...", senderId, count)
	succeeded := 0
	for i := 0; i < count; i++ {
		if i > 0 {
			if err := util.Sleep(ctx, s.clock, s.config.MessageInterval); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		atomic.AddUint64(attempted, 1)
		messagesAttemptedCounter.Inc()
		if err := s.send(ctx, s.prompt(senderId, i, prompts)); err != nil {
			logging.WithStacktrace(logger, err).Error("Error sending message")
			continue
		}
		atomic.AddUint64(sent, 1)
		messagesSentCounter.Inc()
		succeeded++
	}
	logger.Debugf("Sender %d: completed sending %d/%d messages", senderId, succeeded, count)
	return nil
}

func (s *BurstScheduler) send(ctx context.Context, prompt string) error {
	payload, err := Message{
		Prompt:     prompt,
		FastMode:   s.config.FastMode,
		SmallImage: s.config.SmallImage,
	}.Encode()
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, s.config.Subject, payload)
}

// prompt picks a random prompt from the pool, or synthesizes one that identifies its sender and
// index so that messages can be traced without shared state between senders.
func (s *BurstScheduler) prompt(senderId int, index int, prompts []string) string {
	if len(prompts) > 0 {
		return prompts[s.random.Intn(len(prompts))]
	}
	return fmt.Sprintf("Test meme batch %d-%d %d", senderId, index, s.random.Intn(10000)+1)
}
