package scaleprobe

import (
	"context"

	"github.com/pkg/errors"

	"github.com/memebattle/scaleprobe/internal/purge"
)

// Purge removes every message from the stream, printing its statistics before and after.
// A failed purge is reported and returned as an error so that the command exits non-zero.
func (a *App) Purge(ctx context.Context) error {
	if err := a.Params.Validate(); err != nil {
		return err
	}
	s, err := a.connect(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()

	result := purge.NewController(s.broker, a.Params.Stream).Purge(ctx)
	if err := newRenderer(a.Params.Output, a.Out, a.Params.Stream).PurgeResult(result); err != nil {
		return err
	}
	if !result.Success {
		return errors.Errorf("failed to purge stream %s: %s", a.Params.Stream, result.Error)
	}
	return nil
}
