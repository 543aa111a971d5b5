// Package broker reads and writes the durable message stream that feeds the worker fleet.
package broker

import (
	"context"
)

// StreamStats is a point-in-time view of a stream. A nil field means the value was not reported
// or the query failed; it is never defaulted to zero.
type StreamStats struct {
	Messages *uint64 `json:"messages"`
	Bytes    *uint64 `json:"bytes"`
	FirstSeq *uint64 `json:"firstSeq"`
	LastSeq  *uint64 `json:"lastSeq"`
	Deleted  *uint64 `json:"deleted"`
}

// ConsumerStats is a point-in-time view of a durable consumer's backlog.
// Nil fields are unknown, as for StreamStats.
type ConsumerStats struct {
	Pending    *uint64 `json:"pending"`
	AckPending *uint64 `json:"ackPending"`
}

// Client is the subset of broker functionality scaleprobe depends on.
// Every method makes exactly one attempt; failures are returned as *probeerrors.ErrTransport.
type Client interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	StreamInfo(ctx context.Context, stream string) (StreamStats, error)
	ConsumerInfo(ctx context.Context, stream string, consumer string) (ConsumerStats, error)
	Purge(ctx context.Context, stream string) error
}
