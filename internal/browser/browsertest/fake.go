// Package browsertest provides an in-memory browser.Page for tests. Elements
// are registered against queries; any query without a rule matches nothing.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/browser"
)

// ErrNotCheckable mirrors the driver error raised by IsChecked on a
// non-toggle element.
var ErrNotCheckable = errors.New("not a checkbox or radio button")

// Element is a fake DOM node. Fields are plain so tests can arrange and
// inspect them directly.
type Element struct {
	Name      string
	Visible   bool
	Checkable bool
	Checked   bool
	Value     string
	Rect      schemas.Rect

	// Native <select> options. OptionValues defaults to Options.
	Options      []string
	OptionValues []string
	Selected     string

	Files []string

	ClickErr error
	FillErr  error
	CheckErr error
	// ForceOnly makes unforced clicks fail, like an input under an overlay.
	ForceOnly bool
	// OnClick runs after a successful click.
	OnClick func()

	Clicks       int
	ForcedClicks int
	Fills        []string
	CheckCalls   int
	Focused      bool
	Typed        []string
	Pressed      []string
	Scrolled     int

	children map[string][]*Element
}

// NewElement returns a visible element.
func NewElement(name string) *Element {
	return &Element{Name: name, Visible: true}
}

// Hidden marks the element invisible.
func (e *Element) Hidden() *Element {
	e.Visible = false
	return e
}

// Toggle makes the element a checkbox or radio with the given state.
func (e *Element) Toggle(checked bool) *Element {
	e.Checkable = true
	e.Checked = checked
	return e
}

// Select turns the element into a native select with the given options.
func (e *Element) Select(options ...string) *Element {
	e.Options = options
	return e
}

// Child registers elements found by q when searched within e.
func (e *Element) Child(q browser.Query, els ...*Element) *Element {
	if e.children == nil {
		e.children = make(map[string][]*Element)
	}
	e.children[q.String()] = append(e.children[q.String()], els...)
	return e
}

type rule struct {
	match func(browser.Query) bool
	els   []*Element
}

// Page is the fake browser.Page.
type Page struct {
	mu    sync.Mutex
	rules []rule

	CurrentURL  string
	NavigateErr error
	Navigated   []string

	Queries     []string
	Wheels      []float64
	ClickPoints [][2]float64
	KeysPressed []string
	Evaluated   []string

	// EvaluateFunc answers Evaluate calls. When nil, Evaluate returns false.
	EvaluateFunc func(script string, arg any) (any, error)

	ScreenshotData []byte
	ScreenshotErr  error
	Screenshots    int
}

var _ browser.Page = (*Page)(nil)

// NewPage returns an empty fake page.
func NewPage() *Page {
	return &Page{CurrentURL: "about:blank", ScreenshotData: []byte{0xff, 0xd8, 0xff}}
}

// On registers els as the result of exactly q.
func (p *Page) On(q browser.Query, els ...*Element) {
	key := q.String()
	p.OnMatch(func(got browser.Query) bool { return got.String() == key }, els...)
}

// OnMatch registers els for every query accepted by match.
func (p *Page) OnMatch(match func(browser.Query) bool, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, rule{match: match, els: els})
}

// SelectorContains matches CSS queries whose selector contains sub.
func SelectorContains(sub string) func(browser.Query) bool {
	return func(q browser.Query) bool {
		return q.Engine == browser.EngineCSS && strings.Contains(q.Text, sub)
	}
}

// Seen reports whether q was located at least once.
func (p *Page) Seen(q browser.Query) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := q.String()
	for _, s := range p.Queries {
		if s == key {
			return true
		}
	}
	return false
}

func (p *Page) lookup(q browser.Query) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Element
	for _, r := range p.rules {
		if r.match(q) {
			out = append(out, r.els...)
		}
	}
	return out
}

func (p *Page) Locate(q browser.Query) browser.Locator {
	p.mu.Lock()
	p.Queries = append(p.Queries, q.String())
	p.mu.Unlock()
	return &Locator{page: p, resolve: func() []*Element { return p.lookup(q) }}
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigated = append(p.Navigated, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.CurrentURL = url
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Evaluate(_ context.Context, script string, arg any) (any, error) {
	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, script)
	fn := p.EvaluateFunc
	p.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return fn(script, arg)
}

func (p *Page) Wheel(_ context.Context, _, dy float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Wheels = append(p.Wheels, dy)
	return nil
}

func (p *Page) ClickAt(_ context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ClickPoints = append(p.ClickPoints, [2]float64{x, y})
	return nil
}

func (p *Page) Press(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.KeysPressed = append(p.KeysPressed, key)
	return nil
}

func (p *Page) Screenshot(_ context.Context, _ bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Screenshots++
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.ScreenshotData, nil
}

// Locator is the fake browser.Locator. Resolution is lazy, so rules added
// after Locate still apply.
type Locator struct {
	page    *Page
	resolve func() []*Element
}

var _ browser.Locator = (*Locator)(nil)

func (l *Locator) Count(context.Context) (int, error) { return len(l.resolve()), nil }

func (l *Locator) pick(i func(n int) int) browser.Locator {
	return &Locator{page: l.page, resolve: func() []*Element {
		els := l.resolve()
		idx := i(len(els))
		if idx < 0 || idx >= len(els) {
			return nil
		}
		return []*Element{els[idx]}
	}}
}

func (l *Locator) First() browser.Locator { return l.pick(func(int) int { return 0 }) }
func (l *Locator) Last() browser.Locator  { return l.pick(func(n int) int { return n - 1 }) }
func (l *Locator) Nth(i int) browser.Locator {
	return l.pick(func(int) int { return i })
}

func (l *Locator) Locate(q browser.Query) browser.Locator {
	key := q.String()
	return &Locator{page: l.page, resolve: func() []*Element {
		var out []*Element
		for _, el := range l.resolve() {
			out = append(out, el.children[key]...)
		}
		return out
	}}
}

// one returns the first resolved element, as a strict driver would for a
// single-element action.
func (l *Locator) one() (*Element, error) {
	els := l.resolve()
	if len(els) == 0 {
		return nil, browser.ErrNotFound
	}
	return els[0], nil
}

// with runs fn on the first element under the page lock.
func (l *Locator) with(fn func(el *Element) error) error {
	el, err := l.one()
	if err != nil {
		return err
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return fn(el)
}

func (l *Locator) IsVisible(context.Context) (bool, error) {
	el, err := l.one()
	if err != nil {
		return false, nil
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return el.Visible, nil
}

func (l *Locator) IsChecked(context.Context) (bool, error) {
	var checked bool
	err := l.with(func(el *Element) error {
		if !el.Checkable {
			return ErrNotCheckable
		}
		checked = el.Checked
		return nil
	})
	return checked, err
}

func (l *Locator) BoundingBox(context.Context) (*schemas.Rect, error) {
	var r schemas.Rect
	err := l.with(func(el *Element) error {
		r = el.Rect
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (l *Locator) ScrollIntoView(context.Context) error {
	return l.with(func(el *Element) error {
		el.Scrolled++
		return nil
	})
}

func (l *Locator) Click(_ context.Context, opts browser.ClickOptions) error {
	var after func()
	err := l.with(func(el *Element) error {
		if el.ClickErr != nil {
			return el.ClickErr
		}
		if el.ForceOnly && !opts.Force {
			return fmt.Errorf("%s: element is covered by another element", el.Name)
		}
		el.Clicks++
		if opts.Force {
			el.ForcedClicks++
		}
		if el.Checkable {
			el.Checked = true
		}
		after = el.OnClick
		return nil
	})
	if err == nil && after != nil {
		after()
	}
	return err
}

func (l *Locator) Fill(_ context.Context, value string) error {
	return l.with(func(el *Element) error {
		if el.FillErr != nil {
			return el.FillErr
		}
		el.Fills = append(el.Fills, value)
		el.Value = value
		return nil
	})
}

func (l *Locator) Check(context.Context, bool) error {
	return l.with(func(el *Element) error {
		el.CheckCalls++
		if el.CheckErr != nil {
			return el.CheckErr
		}
		if !el.Checkable {
			return ErrNotCheckable
		}
		el.Checked = true
		return nil
	})
}

func (l *Locator) SelectOption(_ context.Context, by browser.OptionBy, value string) error {
	return l.with(func(el *Element) error {
		if len(el.Options) == 0 {
			return fmt.Errorf("%s: element is not a <select> element", el.Name)
		}
		values := el.OptionValues
		if values == nil {
			values = el.Options
		}
		candidates := el.Options
		if by == browser.OptionByValue {
			candidates = values
		}
		for i, c := range candidates {
			if c == value {
				el.Selected = values[i]
				return nil
			}
		}
		return fmt.Errorf("%s: no option matching %q", el.Name, value)
	})
}

func (l *Locator) SetInputFiles(_ context.Context, path string) error {
	return l.with(func(el *Element) error {
		el.Files = []string{path}
		return nil
	})
}

func (l *Locator) Focus(context.Context) error {
	return l.with(func(el *Element) error {
		el.Focused = true
		return nil
	})
}

func (l *Locator) Type(_ context.Context, text string) error {
	return l.with(func(el *Element) error {
		el.Typed = append(el.Typed, text)
		el.Value += text
		return nil
	})
}

func (l *Locator) Press(_ context.Context, key string) error {
	return l.with(func(el *Element) error {
		el.Pressed = append(el.Pressed, key)
		return nil
	})
}
