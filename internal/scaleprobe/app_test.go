package scaleprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/pointer"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
	"github.com/memebattle/scaleprobe/internal/fleet"
	"github.com/memebattle/scaleprobe/internal/loadgen"
	"github.com/memebattle/scaleprobe/internal/purge"
	"github.com/memebattle/scaleprobe/internal/tunnel"
)

func init() {
	color.NoColor = true
}

// instantClock never blocks in After.
type instantClock struct {
	clock.RealClock
}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

type fakeTunnel struct {
	closed int
}

func (t *fakeTunnel) LocalAddress() string {
	return "127.0.0.1:4222"
}

func (t *fakeTunnel) Close() error {
	t.closed++
	return nil
}

type fakeBroker struct {
	mutex     sync.Mutex
	published int
	messages  uint64
	purgeErr  error
	checkErr  error
	closed    int
}

func (b *fakeBroker) Publish(context.Context, string, []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.published++
	b.messages++
	return nil
}

func (b *fakeBroker) StreamInfo(context.Context, string) (broker.StreamStats, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return broker.StreamStats{Messages: pointer.Pointer(b.messages), Bytes: pointer.Pointer(b.messages * 100)}, nil
}

func (b *fakeBroker) ConsumerInfo(context.Context, string, string) (broker.ConsumerStats, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return broker.ConsumerStats{Pending: pointer.Pointer(b.messages)}, nil
}

func (b *fakeBroker) Purge(context.Context, string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.purgeErr != nil {
		return b.purgeErr
	}
	b.messages = 0
	return nil
}

func (b *fakeBroker) Check() error {
	return b.checkErr
}

func (b *fakeBroker) Close() error {
	b.closed++
	return nil
}

type fakeInspector struct {
	pods uint64
}

func (f *fakeInspector) PodCount(context.Context, string, string) (uint64, error) {
	return f.pods, nil
}

func (f *fakeInspector) ScalerStatus(context.Context, string, string) (fleet.ScalerStatus, error) {
	return fleet.ScalerStatus{Conditions: []fleet.Condition{{Type: fleet.ActiveConditionType, Status: fleet.ConditionTrue}}}, nil
}

func (f *fakeInspector) AutoscalerStatus(context.Context, string, string) (fleet.AutoscalerStatus, error) {
	return fleet.AutoscalerStatus{CurrentReplicas: pointer.Pointer(f.pods), DesiredReplicas: pointer.Pointer(f.pods)}, nil
}

type testHarness struct {
	app        *App
	out        *bytes.Buffer
	tunnel     *fakeTunnel
	broker     *fakeBroker
	inspector  *fakeInspector
	brokerUrls []string
}

func newTestHarness() *testHarness {
	h := &testHarness{
		out:       &bytes.Buffer{},
		tunnel:    &fakeTunnel{},
		broker:    &fakeBroker{},
		inspector: &fakeInspector{pods: 2},
	}
	params := DefaultParams()
	params.Cycles = 1
	params.BatchSize = 4
	params.Parallel = 2
	params.Bursts = 2
	h.app = &App{
		Params: params,
		Out:    h.out,
		Clock:  instantClock{},
		OpenTunnel: func(context.Context, tunnel.Config) (Tunnel, error) {
			return h.tunnel, nil
		},
		ConnectBroker: func(config broker.JetstreamConfig) (BrokerConnection, error) {
			h.brokerUrls = append(h.brokerUrls, config.Url)
			return h.broker, nil
		},
		ConnectFleet: func(fleet.KubernetesConfig) (fleet.Inspector, error) {
			return h.inspector, nil
		},
	}
	return h
}

func TestVersion(t *testing.T) {
	h := newTestHarness()
	require.NoError(t, h.app.Version())

	output := h.out.String()
	assert.Contains(t, output, "Version:")
	assert.Contains(t, output, "Go version:")
}

func TestLoad_BoundedRun(t *testing.T) {
	h := newTestHarness()
	h.app.Params.Output = OutputJson

	require.NoError(t, h.app.Load(context.Background()))

	report := loadgen.CycleReport{}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &report))
	assert.Equal(t, uint64(1), report.CycleId)
	assert.Equal(t, uint64(8), report.MessagesSent)
	assert.Equal(t, uint64(8), report.MessagesAttempted)
	assert.Equal(t, 8, h.broker.published)

	assert.Equal(t, []string{"nats://127.0.0.1:4222"}, h.brokerUrls)
	assert.Equal(t, 1, h.tunnel.closed)
	assert.Equal(t, 1, h.broker.closed)
}

func TestLoad_WithoutPortForward(t *testing.T) {
	h := newTestHarness()
	h.app.Params.PortForward.Enabled = false
	h.app.Params.NatsUrl = "nats://broker:4222"

	require.NoError(t, h.app.Load(context.Background()))

	assert.Equal(t, []string{"nats://broker:4222"}, h.brokerUrls)
	assert.Equal(t, 0, h.tunnel.closed)
	assert.Contains(t, h.out.String(), "Cycle #1 summary")
}

func TestLoad_ExtendedPauseReport(t *testing.T) {
	h := newTestHarness()
	h.inspector.pods = 5

	require.NoError(t, h.app.Load(context.Background()))

	output := h.out.String()
	assert.Contains(t, output, "(extended)")
	assert.Contains(t, output, "ScaledObject status:")
	assert.Contains(t, output, "HPA status:")
}

func TestLoad_InvalidParams(t *testing.T) {
	h := newTestHarness()
	h.app.Params.Parallel = 0
	h.app.Params.Bursts = 0

	err := h.app.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel")
	assert.Contains(t, err.Error(), "bursts")
	assert.Empty(t, h.brokerUrls)
}

func TestLoad_TunnelPrecondition(t *testing.T) {
	h := newTestHarness()
	h.app.OpenTunnel = func(context.Context, tunnel.Config) (Tunnel, error) {
		return nil, errors.WithStack(&probeerrors.ErrPrecondition{Requirement: "kubectl", Hint: "install it"})
	}

	err := h.app.Load(context.Background())
	assert.True(t, probeerrors.IsPrecondition(err))
	assert.Empty(t, h.brokerUrls)
	assert.Equal(t, 0, h.tunnel.closed)
}

func TestLoad_BrokerFailureWithoutPortForward(t *testing.T) {
	h := newTestHarness()
	h.app.Params.PortForward.Enabled = false
	h.app.ConnectBroker = func(broker.JetstreamConfig) (BrokerConnection, error) {
		return nil, errors.New("connection refused")
	}

	var err error
	require.NotPanics(t, func() { err = h.app.Load(context.Background()) })
	assert.True(t, probeerrors.IsPrecondition(err))
	assert.Equal(t, 0, h.tunnel.closed)
}

func TestLoad_BrokerFailureReleasesTunnel(t *testing.T) {
	h := newTestHarness()
	h.app.ConnectBroker = func(broker.JetstreamConfig) (BrokerConnection, error) {
		return nil, probeerrors.NewTransport("connect", errors.New("connection refused"))
	}

	err := h.app.Load(context.Background())
	assert.True(t, probeerrors.IsPrecondition(err))
	assert.Equal(t, 1, h.tunnel.closed)
}

func TestLoad_BrokerCheckFailureReleasesEverything(t *testing.T) {
	h := newTestHarness()
	h.broker.checkErr = errors.New("not connected to NATS")

	var err error
	require.NotPanics(t, func() { err = h.app.Load(context.Background()) })
	assert.True(t, probeerrors.IsPrecondition(err))
	assert.Equal(t, 1, h.tunnel.closed)
	assert.Equal(t, 1, h.broker.closed)
	assert.Equal(t, 0, h.broker.published)
}

func TestLoad_FleetFailureReleasesEverything(t *testing.T) {
	h := newTestHarness()
	h.app.ConnectFleet = func(fleet.KubernetesConfig) (fleet.Inspector, error) {
		return nil, errors.New("no kubeconfig")
	}

	err := h.app.Load(context.Background())
	assert.True(t, probeerrors.IsPrecondition(err))
	assert.Equal(t, 1, h.tunnel.closed)
	assert.Equal(t, 1, h.broker.closed)
}

func TestLoad_Interrupted(t *testing.T) {
	h := newTestHarness()
	h.app.Params.Cycles = 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, h.app.Load(ctx))
	assert.Equal(t, 1, h.tunnel.closed)
}

func TestMonitor(t *testing.T) {
	h := newTestHarness()
	h.broker.messages = 7
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.app.Monitor(ctx))

	output := h.out.String()
	assert.Contains(t, output, "KEDA Scaling Monitor")
	assert.Contains(t, output, "Stream (MEMES):")
	assert.Regexp(t, `Pod count:\s+2\n`, output)
	assert.Regexp(t, `Message count:\s+7\n`, output)
	assert.Equal(t, 0, h.broker.published)
	assert.Equal(t, 1, h.tunnel.closed)
}

func TestPurge(t *testing.T) {
	h := newTestHarness()
	h.broker.messages = 42

	require.NoError(t, h.app.Purge(context.Background()))

	output := h.out.String()
	before := output[:strings.Index(output, "Successfully purged")]
	after := output[strings.Index(output, "Successfully purged"):]
	assert.Contains(t, before, "42")
	assert.Regexp(t, `Messages:\s+0\n`, after)
	assert.Equal(t, uint64(0), h.broker.messages)
	assert.Equal(t, 1, h.tunnel.closed)
}

func TestPurge_Failure(t *testing.T) {
	h := newTestHarness()
	h.broker.messages = 42
	h.broker.purgeErr = probeerrors.NewTransport("purge stream", errors.New("timeout"))
	h.app.Params.Output = OutputYaml

	err := h.app.Purge(context.Background())
	assert.Error(t, err)
	assert.Contains(t, h.out.String(), "success: false")
	assert.Equal(t, uint64(42), h.broker.messages)
}

func TestPurge_BrokerFailureReleasesTunnel(t *testing.T) {
	h := newTestHarness()
	h.app.ConnectBroker = func(broker.JetstreamConfig) (BrokerConnection, error) {
		return nil, probeerrors.NewTransport("connect", errors.New("connection refused"))
	}

	var err error
	require.NotPanics(t, func() { err = h.app.Purge(context.Background()) })
	assert.True(t, probeerrors.IsPrecondition(err))
	assert.Equal(t, 1, h.tunnel.closed)
	assert.Empty(t, h.out.String())
}

func TestPurge_Json(t *testing.T) {
	h := newTestHarness()
	h.broker.messages = 3
	h.app.Params.Output = OutputJson

	require.NoError(t, h.app.Purge(context.Background()))

	result := purge.Result{}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, pointer.Pointer(uint64(3)), result.Before.Messages)
	assert.Equal(t, pointer.Pointer(uint64(0)), result.After.Messages)
}
