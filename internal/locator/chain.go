package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
)

// ErrNotResolved is returned once every strategy, the recovery pass and the
// script fallbacks have failed.
var ErrNotResolved = errors.New("target could not be resolved")

const (
	// DefaultScrollDelta is the recovery wheel distance.
	DefaultScrollDelta = 400.0
	// DropdownScrollDelta is used for dropdown trigger chains.
	DropdownScrollDelta = 300.0

	defaultScan   = 3
	settlePause   = 300 * time.Millisecond
	recoveryPause = 500 * time.Millisecond
)

// Action is applied to a resolved candidate.
type Action func(ctx context.Context, el browser.Locator) error

// Chain is an ordered strategy list plus its escalation policy.
type Chain struct {
	// Target names what is being resolved, for logs and errors.
	Target     string
	Strategies []Strategy

	// RequireVisible scrolls each candidate into view and skips invisible
	// ones. File inputs turn it off.
	RequireVisible bool
	// Recovery enables the scroll-and-retry pass.
	Recovery    bool
	ScrollDelta float64

	Logger *zap.Logger
	// Pause defaults to time.Sleep.
	Pause func(time.Duration)
}

func (c *Chain) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Chain) pause(d time.Duration) {
	if c.Pause != nil {
		c.Pause(d)
		return
	}
	time.Sleep(d)
}

// Run resolves the target on page and applies act to the first usable
// candidate.
func (c *Chain) Run(ctx context.Context, page browser.Page, act Action) error {
	log := c.logger().With(zap.String("target", c.Target))

	var primary, fallback []Strategy
	for _, s := range c.Strategies {
		if lr, ok := s.(lastResort); ok && lr.LastResort() {
			fallback = append(fallback, s)
			continue
		}
		primary = append(primary, s)
	}

	if c.pass(ctx, log, page, primary, act) {
		return nil
	}

	if c.Recovery && len(primary) > 0 {
		delta := c.ScrollDelta
		if delta == 0 {
			delta = DefaultScrollDelta
		}
		log.Debug("First pass failed, scrolling for recovery pass.", zap.Float64("delta", delta))
		if err := page.Wheel(ctx, 0, delta); err != nil {
			log.Debug("Recovery scroll failed.", zap.Error(err))
		}
		c.pause(recoveryPause)
		if c.pass(ctx, log, page, primary, act) {
			return nil
		}
	}

	if len(fallback) > 0 {
		log.Debug("Falling back to last-resort strategies.")
		if c.pass(ctx, log, page, fallback, act) {
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrNotResolved, c.Target)
}

func (c *Chain) pass(ctx context.Context, log *zap.Logger, page browser.Page, strategies []Strategy, act Action) bool {
	for _, s := range strategies {
		if ctx.Err() != nil {
			return false
		}
		if c.try(ctx, log.With(zap.String("strategy", s.Name())), page, s, act) {
			return true
		}
	}
	return false
}

func (c *Chain) try(ctx context.Context, log *zap.Logger, page browser.Page, s Strategy, act Action) bool {
	res, err := s.Resolve(ctx, page)
	if err != nil {
		log.Debug("Strategy errored.", zap.Error(err))
		return false
	}
	if res.Handled {
		log.Debug("Strategy handled the interaction.")
		return true
	}
	if res.Locator == nil {
		return false
	}

	n, err := res.Locator.Count(ctx)
	if err != nil || n == 0 {
		return false
	}
	scan := defaultScan
	if res.Scan > 0 {
		scan = res.Scan
	}
	if scan > n {
		scan = n
	}

	for i := 0; i < scan; i++ {
		idx := i
		if res.PreferLast {
			idx = n - 1 - i
		}
		if c.attempt(ctx, log, res.Locator.Nth(idx), act) {
			log.Debug("Candidate accepted.", zap.Int("index", idx), zap.Int("matches", n))
			return true
		}
	}
	return false
}

func (c *Chain) attempt(ctx context.Context, log *zap.Logger, el browser.Locator, act Action) bool {
	if c.RequireVisible {
		if err := el.ScrollIntoView(ctx); err != nil {
			log.Debug("Scroll into view failed.", zap.Error(err))
		}
		c.pause(settlePause)
		visible, err := el.IsVisible(ctx)
		if err != nil || !visible {
			return false
		}
	}
	if err := act(ctx, el); err != nil {
		log.Debug("Action failed on candidate.", zap.Error(err))
		return false
	}
	return true
}
