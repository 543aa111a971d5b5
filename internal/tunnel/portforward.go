// Package tunnel makes the in-cluster broker reachable from the operator's machine.
package tunnel

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

const kubectlInstallHint = "install it from https://kubernetes.io/docs/tasks/tools/"

type Config struct {
	Enabled bool
	// Binary used to forward the port. Defaults to kubectl.
	Kubectl string
	// Kubeconfig context passed to kubectl. Empty uses the current context.
	Context   string
	Service   string
	Namespace string
	// Port mapping in kubectl form, local:remote or a single port used for both.
	Ports string
	// How long to wait for the local endpoint to accept connections.
	ReadyTimeout time.Duration
}

// PortForward is a running `kubectl port-forward` process.
// It is owned by whoever called Open and must be released with Close.
type PortForward struct {
	cmd       *exec.Cmd
	localAddr string
	stderr    *syncBuffer
	exited    chan struct{}
	exitErr   error
	closeOnce sync.Once
}

// CheckPrerequisites returns an *probeerrors.ErrPrecondition if the configured binary cannot be found.
func CheckPrerequisites(config Config) error {
	if !config.Enabled {
		return nil
	}
	binary := kubectlBinary(config)
	if _, err := exec.LookPath(binary); err != nil {
		return errors.WithStack(&probeerrors.ErrPrecondition{
			Requirement: binary,
			Hint:        kubectlInstallHint,
			Cause:       err,
		})
	}
	return nil
}

// Open starts the port forward and waits until the local end accepts TCP connections.
// If the forward never becomes ready the process is stopped before returning the error.
func Open(ctx context.Context, config Config) (*PortForward, error) {
	if err := CheckPrerequisites(config); err != nil {
		return nil, err
	}
	localPort, err := localPort(config.Ports)
	if err != nil {
		return nil, err
	}

	args := []string{"port-forward", config.Service, config.Ports, "-n", config.Namespace}
	if config.Context != "" {
		args = append(args, "--context", config.Context)
	}
	cmd := exec.Command(kubectlBinary(config), args...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	log.Infof("Setting up port-forwarding to %s in namespace %s (%s)...", config.Service, config.Namespace, config.Ports)
	if err := cmd.Start(); err != nil {
		return nil, errors.WithMessagef(err, "error starting %s", cmd.String())
	}

	pf := &PortForward{
		cmd:       cmd,
		localAddr: net.JoinHostPort("127.0.0.1", localPort),
		stderr:    stderr,
		exited:    make(chan struct{}),
	}
	go func() {
		pf.exitErr = cmd.Wait()
		close(pf.exited)
	}()

	if err := pf.waitReady(ctx, config.ReadyTimeout); err != nil {
		_ = pf.Close()
		return nil, err
	}
	log.Infof("Port-forwarding established on %s", pf.localAddr)
	return pf, nil
}

// LocalAddress is the host:port on which the forwarded service is reachable.
func (pf *PortForward) LocalAddress() string {
	return pf.localAddr
}

// Close terminates the process and waits for it to exit. Safe to call more than once.
func (pf *PortForward) Close() error {
	var err error
	pf.closeOnce.Do(func() {
		select {
		case <-pf.exited:
			return
		default:
		}
		if signalErr := pf.cmd.Process.Signal(syscall.SIGTERM); signalErr != nil {
			err = errors.WithStack(signalErr)
		}
		select {
		case <-pf.exited:
		case <-time.After(5 * time.Second):
			err = errors.WithStack(pf.cmd.Process.Kill())
			<-pf.exited
		}
		log.Info("Port forwarding terminated")
	})
	return err
}

func (pf *PortForward) waitReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	const delay = 200 * time.Millisecond
	err := retry.Do(
		func() error {
			select {
			case <-pf.exited:
				return retry.Unrecoverable(errors.Errorf("port-forward exited: %s", pf.output()))
			default:
			}
			conn, err := net.DialTimeout("tcp", pf.localAddr, 500*time.Millisecond)
			if err != nil {
				return err
			}
			return conn.Close()
		},
		retry.Context(ctx),
		retry.Attempts(uint(timeout/delay)+1),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return errors.WithMessagef(err, "port-forward to %s did not become ready", pf.localAddr)
	}
	return nil
}

func (pf *PortForward) output() string {
	out := strings.TrimSpace(pf.stderr.String())
	if out == "" && pf.exitErr != nil {
		return pf.exitErr.Error()
	}
	return out
}

func kubectlBinary(config Config) string {
	if config.Kubectl == "" {
		return "kubectl"
	}
	return config.Kubectl
}

func localPort(ports string) (string, error) {
	local := strings.SplitN(ports, ":", 2)[0]
	if local == "" {
		return "", errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "portForward.ports",
			Value:   ports,
			Message: "expected local:remote",
		})
	}
	var port uint16
	if _, err := fmt.Sscanf(local, "%d", &port); err != nil || fmt.Sprint(port) != local {
		return "", errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "portForward.ports",
			Value:   ports,
			Message: "local port must be a number between 0 and 65535",
		})
	}
	return local, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
