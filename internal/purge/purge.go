// Package purge empties the stream so that a new test run starts from a known state.
package purge

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/logging"
)

// Result records the stream before and after a purge. Before is nil if it could not be read.
// After is only read, and so only set, once the purge has succeeded.
type Result struct {
	Stream  string              `json:"stream"`
	Before  *broker.StreamStats `json:"before"`
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	After   *broker.StreamStats `json:"after"`
}

type Controller struct {
	broker broker.Client
	stream string
}

func NewController(client broker.Client, stream string) *Controller {
	return &Controller{broker: client, stream: stream}
}

// Purge removes every message from the stream. It makes exactly one purge attempt.
func (c *Controller) Purge(ctx context.Context) Result {
	logger := log.WithField("stream", c.stream)
	result := Result{Stream: c.stream}

	result.Before = c.stats(ctx, logger)

	logger.Infof("Purging all messages from stream %s...", c.stream)
	if err := c.broker.Purge(ctx, c.stream); err != nil {
		logging.WithStacktrace(logger, err).Error("Error purging stream")
		result.Error = err.Error()
		return result
	}
	result.Success = true
	logger.Infof("Successfully purged all messages from stream %s", c.stream)

	result.After = c.stats(ctx, logger)
	return result
}

func (c *Controller) stats(ctx context.Context, logger *log.Entry) *broker.StreamStats {
	stats, err := c.broker.StreamInfo(ctx, c.stream)
	if err != nil {
		logging.WithStacktrace(logger, err).Warn("Could not get stream info")
		return nil
	}
	return &stats
}
