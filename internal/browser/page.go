package browser

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/visionfill/api/schemas"
)

// ErrNotFound is returned by single-element operations on an empty locator.
var ErrNotFound = errors.New("element not found")

// DefaultActionTimeout bounds a single click, fill or check attempt.
const DefaultActionTimeout = 5 * time.Second

// ClickOptions tunes a locator click.
type ClickOptions struct {
	// Force skips actionability checks, which lets clicks land on inputs
	// hidden behind styled overlays.
	Force   bool
	Timeout time.Duration
}

// OptionBy selects how SelectOption matches a native <option>.
type OptionBy int

const (
	OptionByLabel OptionBy = iota
	OptionByValue
)

// Page is the slice of a browser tab the engine needs. It is owned by one
// goroutine at a time.
type Page interface {
	Locate(q Query) Locator
	Navigate(ctx context.Context, url string) error
	URL() string
	// Evaluate runs a JS function expression with a single argument.
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	Wheel(ctx context.Context, dx, dy float64) error
	ClickAt(ctx context.Context, x, y float64) error
	Press(ctx context.Context, key string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// Locator is a lazy handle to zero or more live elements. Handles are only
// meaningful against the DOM they were created for.
type Locator interface {
	Count(ctx context.Context) (int, error)
	First() Locator
	Last() Locator
	Nth(i int) Locator
	Locate(q Query) Locator

	IsVisible(ctx context.Context) (bool, error)
	IsChecked(ctx context.Context) (bool, error)
	BoundingBox(ctx context.Context) (*schemas.Rect, error)

	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context, opts ClickOptions) error
	Fill(ctx context.Context, value string) error
	Check(ctx context.Context, force bool) error
	SelectOption(ctx context.Context, by OptionBy, value string) error
	SetInputFiles(ctx context.Context, path string) error
	Focus(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
}
