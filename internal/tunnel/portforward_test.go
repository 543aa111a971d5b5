package tunnel

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

// writeFakeKubectl writes an executable shell script standing in for kubectl.
func writeFakeKubectl(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubectl")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return l, port
}

func TestCheckPrerequisites_MissingBinary(t *testing.T) {
	err := CheckPrerequisites(Config{Enabled: true, Kubectl: filepath.Join(t.TempDir(), "no-such-kubectl")})
	assert.True(t, probeerrors.IsPrecondition(err))
}

func TestCheckPrerequisites_Disabled(t *testing.T) {
	assert.NoError(t, CheckPrerequisites(Config{Enabled: false, Kubectl: "/does/not/exist"}))
}

func TestOpen_ReadyThenClose(t *testing.T) {
	_, port := listen(t)
	kubectl := writeFakeKubectl(t, "exec sleep 30")

	pf, err := Open(context.Background(), Config{
		Enabled:      true,
		Kubectl:      kubectl,
		Service:      "svc/nats",
		Namespace:    "messaging",
		Ports:        port + ":4222",
		ReadyTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+port, pf.LocalAddress())

	require.NoError(t, pf.Close())
	select {
	case <-pf.exited:
	default:
		t.Fatal("process still running after Close")
	}
	// Second close is a no-op.
	assert.NoError(t, pf.Close())
}

func TestOpen_ProcessExits(t *testing.T) {
	kubectl := writeFakeKubectl(t, `echo 'error: services "nats" not found' >&2; exit 1`)

	_, err := Open(context.Background(), Config{
		Enabled:      true,
		Kubectl:      kubectl,
		Service:      "svc/nats",
		Namespace:    "messaging",
		Ports:        "1:4222",
		ReadyTimeout: 5 * time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `services "nats" not found`)
}

func TestOpen_MissingBinary(t *testing.T) {
	_, err := Open(context.Background(), Config{Enabled: true, Kubectl: filepath.Join(t.TempDir(), "missing"), Ports: "4222:4222"})
	assert.True(t, probeerrors.IsPrecondition(err))
}

func TestLocalPort(t *testing.T) {
	tests := map[string]struct {
		ports   string
		want    string
		wantErr bool
	}{
		"local:remote": {ports: "14222:4222", want: "14222"},
		"single port":  {ports: "4222", want: "4222"},
		"empty local":  {ports: ":4222", wantErr: true},
		"not a number": {ports: "nats:4222", wantErr: true},
		"out of range": {ports: "99999:4222", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := localPort(tc.ports)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
