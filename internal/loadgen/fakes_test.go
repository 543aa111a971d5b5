package loadgen

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/pointer"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
	"github.com/memebattle/scaleprobe/internal/fleet"
)

// recordingClock returns immediately from After and remembers every requested duration.
type recordingClock struct {
	clock.RealClock
	mutex  sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *recordingClock) Sleeps() []time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]time.Duration{}, c.sleeps...)
}

func (c *recordingClock) count(d time.Duration) int {
	n := 0
	for _, s := range c.Sleeps() {
		if s == d {
			n++
		}
	}
	return n
}

type fakeBroker struct {
	mutex       sync.Mutex
	published   [][]byte
	subjects    map[string]int
	inFlight    int
	maxInFlight int
	publishErr  error
	// Called after every publish attempt with the number of attempts so far.
	onPublish func(attempts int)
	attempts  int
	pending   []uint64
	infoErr   error
	infoCalls int
}

func (b *fakeBroker) Publish(_ context.Context, subject string, payload []byte) error {
	b.mutex.Lock()
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	b.mutex.Unlock()

	time.Sleep(time.Millisecond)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.inFlight--
	b.attempts++
	if b.onPublish != nil {
		b.onPublish(b.attempts)
	}
	if b.publishErr != nil {
		return b.publishErr
	}
	if b.subjects == nil {
		b.subjects = map[string]int{}
	}
	b.subjects[subject]++
	b.published = append(b.published, payload)
	return nil
}

func (b *fakeBroker) PublishedCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.published)
}

func (b *fakeBroker) StreamInfo(context.Context, string) (broker.StreamStats, error) {
	return broker.StreamStats{}, nil
}

func (b *fakeBroker) ConsumerInfo(context.Context, string, string) (broker.ConsumerStats, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	call := b.infoCalls
	b.infoCalls++
	if b.infoErr != nil {
		return broker.ConsumerStats{}, b.infoErr
	}
	if call < len(b.pending) {
		return broker.ConsumerStats{Pending: pointer.Pointer(b.pending[call]), AckPending: pointer.Pointer(uint64(0))}, nil
	}
	return broker.ConsumerStats{}, nil
}

func (b *fakeBroker) Purge(context.Context, string) error {
	return nil
}

// fakeInspector returns pod counts from a script, repeating the last value once it runs out.
type fakeInspector struct {
	mutex           sync.Mutex
	podCounts       []uint64
	podCountErr     error
	podCountCalls   int
	scaler          fleet.ScalerStatus
	scalerErr       error
	scalerCalls     int
	autoscaler      fleet.AutoscalerStatus
	autoscalerErr   error
	autoscalerCalls int
}

func (f *fakeInspector) PodCount(context.Context, string, string) (uint64, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	call := f.podCountCalls
	f.podCountCalls++
	if f.podCountErr != nil {
		return 0, f.podCountErr
	}
	if len(f.podCounts) == 0 {
		return 0, nil
	}
	if call >= len(f.podCounts) {
		call = len(f.podCounts) - 1
	}
	return f.podCounts[call], nil
}

func (f *fakeInspector) ScalerStatus(context.Context, string, string) (fleet.ScalerStatus, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.scalerCalls++
	return f.scaler, f.scalerErr
}

func (f *fakeInspector) AutoscalerStatus(context.Context, string, string) (fleet.AutoscalerStatus, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.autoscalerCalls++
	return f.autoscaler, f.autoscalerErr
}

func transportError(op string) error {
	return probeerrors.NewTransport(op, errors.New("connection refused"))
}
