// Package marker implements coordinate targeting: it overlays numbered boxes
// on the visible interactive elements so the model can answer with an id
// instead of a label.
//
// Every marking pass opens a new epoch. Ids are only meaningful within the
// epoch that produced them; once markers are removed or the page is marked
// again, older ids are rejected without touching the DOM.
package marker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/browser"
)

var (
	// ErrStaleEpoch is returned for ids from any epoch other than the
	// current marked one.
	ErrStaleEpoch = errors.New("marker epoch is stale")
	// ErrElementNotFound means the id is not present in the current epoch.
	ErrElementNotFound = errors.New("marked element not found")
)

const clickSettle = 200 * time.Millisecond

// Manifest is the result of one marking pass.
type Manifest struct {
	Epoch   uint64
	Markers []schemas.Marker
}

// ElementInfo is the live geometry of a marked element.
type ElementInfo struct {
	Found   bool         `json:"found"`
	Visible bool         `json:"visible"`
	Rect    schemas.Rect `json:"rect"`
}

// Subsystem owns the marker state for one page.
type Subsystem struct {
	page   browser.Page
	logger *zap.Logger
	pause  func(time.Duration)

	mu     sync.Mutex
	epoch  uint64
	marked bool
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithPause replaces time.Sleep for the post-click settle.
func WithPause(p func(time.Duration)) Option {
	return func(s *Subsystem) { s.pause = p }
}

// New creates an unmarked Subsystem for page.
func New(page browser.Page, logger *zap.Logger, opts ...Option) *Subsystem {
	s := &Subsystem{
		page:   page,
		logger: logger.Named("marker"),
		pause:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Marked reports whether overlays are currently on the page, and for which
// epoch.
func (s *Subsystem) Marked() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch, s.marked
}

// Mark removes any prior overlays, opens a new epoch and marks the page.
func (s *Subsystem) Mark(ctx context.Context) (Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.marked {
		if _, err := s.page.Evaluate(ctx, removeScript, nil); err != nil {
			s.logger.Debug("Failed to clear previous markers.", zap.Error(err))
		}
	}
	s.marked = false
	s.epoch++

	raw, err := s.page.Evaluate(ctx, injectScript, s.epoch)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to inject markers: %w", err)
	}
	var markers []schemas.Marker
	if err := decode(raw, &markers); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode marker manifest: %w", err)
	}
	s.marked = true

	s.logger.Debug("Marked interactive elements.", zap.Uint64("epoch", s.epoch), zap.Int("count", len(markers)))
	return Manifest{Epoch: s.epoch, Markers: markers}, nil
}

// Remove clears overlays and id attributes. The current epoch is invalidated
// even if the script fails.
func (s *Subsystem) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.marked {
		return nil
	}
	s.marked = false
	if _, err := s.page.Evaluate(ctx, removeScript, nil); err != nil {
		return fmt.Errorf("failed to remove markers: %w", err)
	}
	return nil
}

func (s *Subsystem) current(epoch uint64) error {
	if !s.marked || epoch != s.epoch {
		return fmt.Errorf("%w: got %d, current %d (marked=%t)", ErrStaleEpoch, epoch, s.epoch, s.marked)
	}
	return nil
}

// Info returns the live geometry of marker id.
func (s *Subsystem) Info(ctx context.Context, epoch uint64, id int) (ElementInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(ctx, epoch, id)
}

func (s *Subsystem) info(ctx context.Context, epoch uint64, id int) (ElementInfo, error) {
	if err := s.current(epoch); err != nil {
		return ElementInfo{}, err
	}
	raw, err := s.page.Evaluate(ctx, infoScript, map[string]any{"id": id, "epoch": epoch})
	if err != nil {
		return ElementInfo{}, fmt.Errorf("failed to query marker #%d: %w", id, err)
	}
	var info ElementInfo
	if raw != nil {
		if err := decode(raw, &info); err != nil {
			return ElementInfo{}, fmt.Errorf("failed to decode marker #%d: %w", id, err)
		}
	}
	return info, nil
}

// ClickAt clicks the center of marker id with the mouse.
func (s *Subsystem) ClickAt(ctx context.Context, epoch uint64, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clickAt(ctx, epoch, id)
}

// CheckAt ticks marker id. A control that already reports checked is left
// alone, since a second click would untick it.
func (s *Subsystem) CheckAt(ctx context.Context, epoch uint64, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(epoch); err != nil {
		return err
	}
	el := s.page.Locate(browser.CSS(Selector(epoch, id)))
	if n, err := el.Count(ctx); err == nil && n > 0 {
		if checked, err := el.First().IsChecked(ctx); err == nil && checked {
			s.logger.Debug("Marked element already checked.", zap.Int("id", id))
			return nil
		}
	}
	return s.clickAt(ctx, epoch, id)
}

func (s *Subsystem) clickAt(ctx context.Context, epoch uint64, id int) error {
	info, err := s.info(ctx, epoch, id)
	if err != nil {
		return err
	}
	if !info.Found {
		return fmt.Errorf("%w: #%d", ErrElementNotFound, id)
	}
	if err := s.page.ClickAt(ctx, info.Rect.CenterX, info.Rect.CenterY); err != nil {
		return fmt.Errorf("failed to click marker #%d: %w", id, err)
	}
	s.pause(clickSettle)
	s.logger.Debug("Clicked marked element.", zap.Int("id", id),
		zap.Float64("x", info.Rect.CenterX), zap.Float64("y", info.Rect.CenterY))
	return nil
}

// TypeInto focuses, clears and types text into marker id.
func (s *Subsystem) TypeInto(ctx context.Context, epoch uint64, id int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(epoch); err != nil {
		return err
	}
	el := s.page.Locate(browser.CSS(Selector(epoch, id)))
	if n, err := el.Count(ctx); err != nil || n == 0 {
		return fmt.Errorf("%w: #%d", ErrElementNotFound, id)
	}
	el = el.First()
	if err := el.Focus(ctx); err != nil {
		return fmt.Errorf("failed to focus marker #%d: %w", id, err)
	}
	if err := el.Fill(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear marker #%d: %w", id, err)
	}
	if err := el.Type(ctx, text); err != nil {
		return fmt.Errorf("failed to type into marker #%d: %w", id, err)
	}
	return nil
}

// Selector is the CSS selector for marker id in epoch.
func Selector(epoch uint64, id int) string {
	return fmt.Sprintf(`[%s="%d"][%s="%d"]`, idAttr, id, epochAttr, epoch)
}

// Summary renders markers as one line each for the model prompt.
func Summary(markers []schemas.Marker) string {
	if len(markers) == 0 {
		return "No markers present"
	}
	var b strings.Builder
	b.WriteString("Marked Elements:")
	for _, m := range markers {
		fmt.Fprintf(&b, "\n  #%d: <%s", m.ID, m.Tag)
		if m.Type != "" {
			fmt.Fprintf(&b, " type='%s'", m.Type)
		}
		if m.Placeholder != "" {
			fmt.Fprintf(&b, " placeholder='%s'", clip(m.Placeholder, 20))
		}
		if m.AriaLabel != "" {
			fmt.Fprintf(&b, " aria-label='%s'", clip(m.AriaLabel, 20))
		}
		b.WriteString(">")
		if m.Text != "" {
			fmt.Fprintf(&b, " '%s'", clip(m.Text, 20))
		}
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// decode converts a loosely typed Evaluate result into out.
func decode(raw any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
