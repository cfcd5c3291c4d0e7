package form

import (
	"context"

	"go.uber.org/zap"
)

// Direction is a vertical scroll direction.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Scroll moves the viewport by the configured wheel delta. It always
// succeeds; a wheel error is only logged.
func (e *Executor) Scroll(ctx context.Context, dir Direction) error {
	dy := e.opts.ScrollDelta
	if dir == Up {
		dy = -dy
	}
	if err := e.page.Wheel(ctx, 0, dy); err != nil {
		e.logger.Debug("Wheel scroll failed.", zap.Stringer("direction", dir), zap.Error(err))
	}
	e.succeeded("scroll_"+dir.String(), "", zap.Float64("delta", dy))
	return nil
}

// Wait pauses for the configured interval to let the page settle.
func (e *Executor) Wait(context.Context) error {
	e.pause(e.opts.WaitInterval)
	e.succeeded("wait", "", zap.Duration("interval", e.opts.WaitInterval))
	return nil
}
