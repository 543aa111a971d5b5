package broker

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/memebattle/scaleprobe/internal/common/pointer"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

type JetstreamConfig struct {
	// Comma separated list of server urls, e.g., nats://localhost:4222
	Url string
	// Name reported to the server for this connection.
	ClientName string
	// Upper bound on any single publish or API call.
	RequestTimeout time.Duration
}

// JetstreamClient implements Client against NATS JetStream.
type JetstreamClient struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	timeout time.Duration
}

func NewJetstreamClient(config JetstreamConfig) (*JetstreamClient, error) {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	name := config.ClientName
	if name == "" {
		name = "scaleprobe"
	}
	conn, err := nats.Connect(config.Url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("Reconnected to NATS at %s", c.ConnectedUrl())
		}))
	if err != nil {
		return nil, probeerrors.NewTransport("connect to "+config.Url, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, probeerrors.NewTransport("create jetstream context", err)
	}
	return &JetstreamClient{
		conn:    conn,
		js:      js,
		timeout: timeout,
	}, nil
}

func (c *JetstreamClient) Publish(ctx context.Context, subject string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.js.Publish(subject, payload, nats.Context(ctx))
	return probeerrors.NewTransport("publish to "+subject, err)
}

func (c *JetstreamClient) StreamInfo(ctx context.Context, stream string) (StreamStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	info, err := c.js.StreamInfo(stream, nats.Context(ctx))
	if err != nil {
		return StreamStats{}, probeerrors.NewTransport("stream info "+stream, err)
	}
	return streamStatsFromState(info.State), nil
}

func (c *JetstreamClient) ConsumerInfo(ctx context.Context, stream string, consumer string) (ConsumerStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	info, err := c.js.ConsumerInfo(stream, consumer, nats.Context(ctx))
	if err != nil {
		return ConsumerStats{}, probeerrors.NewTransport("consumer info "+stream+"/"+consumer, err)
	}
	return ConsumerStats{
		Pending:    pointer.Pointer(info.NumPending),
		AckPending: pointer.Uint64(info.NumAckPending),
	}, nil
}

func (c *JetstreamClient) Purge(ctx context.Context, stream string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return probeerrors.NewTransport("purge "+stream, c.js.PurgeStream(stream, nats.Context(ctx)))
}

func (c *JetstreamClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

func (c *JetstreamClient) Check() error {
	if !c.conn.IsConnected() {
		return errors.New("not connected to NATS")
	}
	return nil
}

// streamStatsFromState leaves Deleted unset: StreamState carries no deleted count at this client version.
func streamStatsFromState(state nats.StreamState) StreamStats {
	return StreamStats{
		Messages: pointer.Pointer(state.Msgs),
		Bytes:    pointer.Pointer(state.Bytes),
		FirstSeq: pointer.Pointer(state.FirstSeq),
		LastSeq:  pointer.Pointer(state.LastSeq),
		Deleted:  nil,
	}
}
