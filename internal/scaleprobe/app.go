// Package scaleprobe ties the load generator, monitor and purge tools to their command line.
package scaleprobe

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
	"github.com/memebattle/scaleprobe/internal/common/util"
	"github.com/memebattle/scaleprobe/internal/fleet"
	"github.com/memebattle/scaleprobe/internal/scaleprobe/build"
	"github.com/memebattle/scaleprobe/internal/tunnel"
)

// BrokerConnection is a broker client holding a connection that must be closed.
// Check reports whether the connection is still usable.
type BrokerConnection interface {
	broker.Client
	Check() error
	Close() error
}

// Tunnel is a running connection to the in-cluster broker.
type Tunnel interface {
	LocalAddress() string
	Close() error
}

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer
	// Clock drives every pause and timestamp. Tests replace it to avoid sleeping.
	Clock clock.WithTicker

	// Connectors for external systems, replaced in tests.
	OpenTunnel    func(ctx context.Context, config tunnel.Config) (Tunnel, error)
	ConnectBroker func(config broker.JetstreamConfig) (BrokerConnection, error)
	ConnectFleet  func(config fleet.KubernetesConfig) (fleet.Inspector, error)
}

// New instantiates an App with default parameters, writing to standard out and
// connecting to the real broker and cluster.
func New() *App {
	return &App{
		Params: DefaultParams(),
		Out:    os.Stdout,
		Clock:  clock.RealClock{},
		OpenTunnel: func(ctx context.Context, config tunnel.Config) (Tunnel, error) {
			pf, err := tunnel.Open(ctx, config)
			if err != nil {
				return nil, err
			}
			return pf, nil
		},
		ConnectBroker: func(config broker.JetstreamConfig) (BrokerConnection, error) {
			client, err := broker.NewJetstreamClient(config)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		ConnectFleet: func(config fleet.KubernetesConfig) (fleet.Inspector, error) {
			inspector, err := fleet.NewInspectorFromConfig(config)
			if err != nil {
				return nil, err
			}
			return inspector, nil
		},
	}
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	return nil
}

// session holds the resources acquired for one command. close releases them in reverse order.
type session struct {
	tunnel    Tunnel
	broker    BrokerConnection
	inspector fleet.Inspector
}

func (s *session) close() {
	if s.broker != nil {
		util.CloseResource("broker connection", s.broker)
	}
	if s.tunnel != nil {
		log.Info("Terminating port forwarding...")
		util.CloseResource("port forward", s.tunnel)
	}
}

// connect acquires the tunnel (if enabled), the broker connection and, if needFleet is set,
// the cluster client. Failing to acquire any of them is a precondition failure; whatever was
// already acquired is released before returning.
func (a *App) connect(ctx context.Context, needFleet bool) (*session, error) {
	s := &session{}
	acquired := false
	defer func() {
		if !acquired {
			s.close()
		}
	}()

	url := a.Params.NatsUrl
	if a.Params.PortForward.Enabled {
		t, err := a.OpenTunnel(ctx, a.tunnelConfig())
		if err != nil {
			return nil, asPrecondition("port forward to "+a.Params.PortForward.Service, err)
		}
		s.tunnel = t
		url = "nats://" + t.LocalAddress()
	}

	b, err := a.ConnectBroker(broker.JetstreamConfig{
		Url:            url,
		ClientName:     "scaleprobe",
		RequestTimeout: a.Params.RequestTimeout,
	})
	if err != nil {
		return nil, asPrecondition("broker at "+url, err)
	}
	s.broker = b
	if err := b.Check(); err != nil {
		return nil, asPrecondition("broker at "+url, err)
	}

	if needFleet {
		inspector, err := a.ConnectFleet(fleet.KubernetesConfig{
			Kubeconfig: a.Params.Kubeconfig,
			Context:    a.Params.KubeContext,
			QPS:        a.Params.KubeQPS,
			Burst:      a.Params.KubeBurst,
		})
		if err != nil {
			return nil, asPrecondition("kubernetes cluster access", err)
		}
		s.inspector = inspector
	}
	acquired = true
	return s, nil
}

func (a *App) tunnelConfig() tunnel.Config {
	return tunnel.Config{
		Enabled:      a.Params.PortForward.Enabled,
		Kubectl:      a.Params.PortForward.Kubectl,
		Context:      a.Params.KubeContext,
		Service:      a.Params.PortForward.Service,
		Namespace:    a.Params.PortForward.Namespace,
		Ports:        a.Params.PortForward.Ports,
		ReadyTimeout: a.Params.PortForward.ReadyTimeout,
	}
}

func (a *App) target() fleet.Target {
	return fleet.Target{
		Namespace:    a.Params.Namespace,
		PodSelector:  a.Params.PodSelector,
		ScaledObject: a.Params.ScaledObject,
		Autoscaler:   a.Params.Hpa,
	}
}

func asPrecondition(requirement string, err error) error {
	if probeerrors.IsPrecondition(err) {
		return err
	}
	return errors.WithStack(&probeerrors.ErrPrecondition{Requirement: requirement, Cause: err})
}

// isInterrupted reports whether err only signals that the command was asked to stop.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
