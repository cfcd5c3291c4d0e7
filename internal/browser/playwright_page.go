package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/visionfill/api/schemas"
)

// playwrightPage adapts a playwright.Page to the Page interface.
type playwrightPage struct {
	page              playwright.Page
	navigationTimeout time.Duration
	screenshotQuality int
}

// NewPlaywrightPage wraps an open playwright page.
func NewPlaywrightPage(page playwright.Page, navigationTimeout time.Duration) Page {
	if navigationTimeout <= 0 {
		navigationTimeout = 30 * time.Second
	}
	return &playwrightPage{page: page, navigationTimeout: navigationTimeout, screenshotQuality: 85}
}

// timeoutMs converts the smaller of d and the context deadline into the
// millisecond float playwright expects.
func timeoutMs(ctx context.Context, d time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Locate(q Query) Locator {
	var loc playwright.Locator
	switch q.Engine {
	case EngineRole:
		opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(q.Exact)}
		if q.Text != "" {
			opts.Name = q.Text
		}
		loc = p.page.GetByRole(playwright.AriaRole(q.Role), opts)
	case EngineLabel:
		loc = p.page.GetByLabel(q.Text, playwright.PageGetByLabelOptions{Exact: playwright.Bool(q.Exact)})
	case EnginePlaceholder:
		loc = p.page.GetByPlaceholder(q.Text, playwright.PageGetByPlaceholderOptions{Exact: playwright.Bool(q.Exact)})
	case EngineText:
		loc = p.page.GetByText(q.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(q.Exact)})
	default:
		loc = p.page.Locator(q.Text)
	}
	return &playwrightLocator{loc: loc}
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   timeoutMs(ctx, p.navigationTimeout),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Evaluate(script, arg)
}

func (p *playwrightPage) Wheel(ctx context.Context, dx, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse().Wheel(dx, dy)
}

func (p *playwrightPage) ClickAt(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse().Click(x, y)
}

func (p *playwrightPage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Press(key)
}

func (p *playwrightPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(p.screenshotQuality),
		FullPage: playwright.Bool(fullPage),
	})
}

// playwrightLocator adapts a playwright.Locator to the Locator interface.
type playwrightLocator struct {
	loc playwright.Locator
}

func (l *playwrightLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.loc.Count()
}

func (l *playwrightLocator) First() Locator    { return &playwrightLocator{loc: l.loc.First()} }
func (l *playwrightLocator) Last() Locator     { return &playwrightLocator{loc: l.loc.Last()} }
func (l *playwrightLocator) Nth(i int) Locator { return &playwrightLocator{loc: l.loc.Nth(i)} }

func (l *playwrightLocator) Locate(q Query) Locator {
	var loc playwright.Locator
	switch q.Engine {
	case EngineRole:
		opts := playwright.LocatorGetByRoleOptions{Exact: playwright.Bool(q.Exact)}
		if q.Text != "" {
			opts.Name = q.Text
		}
		loc = l.loc.GetByRole(playwright.AriaRole(q.Role), opts)
	case EngineLabel:
		loc = l.loc.GetByLabel(q.Text, playwright.LocatorGetByLabelOptions{Exact: playwright.Bool(q.Exact)})
	case EnginePlaceholder:
		loc = l.loc.GetByPlaceholder(q.Text, playwright.LocatorGetByPlaceholderOptions{Exact: playwright.Bool(q.Exact)})
	case EngineText:
		loc = l.loc.GetByText(q.Text, playwright.LocatorGetByTextOptions{Exact: playwright.Bool(q.Exact)})
	default:
		loc = l.loc.Locator(q.Text)
	}
	return &playwrightLocator{loc: loc}
}

func (l *playwrightLocator) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.loc.IsVisible()
}

func (l *playwrightLocator) IsChecked(ctx context.Context) (bool, error) {
	return l.loc.IsChecked(playwright.LocatorIsCheckedOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
}

func (l *playwrightLocator) BoundingBox(ctx context.Context) (*schemas.Rect, error) {
	box, err := l.loc.BoundingBox(playwright.LocatorBoundingBoxOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, ErrNotFound
	}
	return &schemas.Rect{
		X: box.X, Y: box.Y, Width: box.Width, Height: box.Height,
		CenterX: box.X + box.Width/2,
		CenterY: box.Y + box.Height/2,
	}, nil
}

func (l *playwrightLocator) ScrollIntoView(ctx context.Context) error {
	return l.loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: timeoutMs(ctx, DefaultActionTimeout),
	})
}

func (l *playwrightLocator) Click(ctx context.Context, opts ClickOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return l.loc.Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(opts.Force),
		Timeout: timeoutMs(ctx, timeout),
	})
}

func (l *playwrightLocator) Fill(ctx context.Context, value string) error {
	return l.loc.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
}

func (l *playwrightLocator) Check(ctx context.Context, force bool) error {
	return l.loc.Check(playwright.LocatorCheckOptions{
		Force:   playwright.Bool(force),
		Timeout: timeoutMs(ctx, DefaultActionTimeout),
	})
}

func (l *playwrightLocator) SelectOption(ctx context.Context, by OptionBy, value string) error {
	values := playwright.SelectOptionValues{Labels: playwright.StringSlice(value)}
	if by == OptionByValue {
		values = playwright.SelectOptionValues{Values: playwright.StringSlice(value)}
	}
	_, err := l.loc.SelectOption(values, playwright.LocatorSelectOptionOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
	return err
}

func (l *playwrightLocator) SetInputFiles(ctx context.Context, path string) error {
	return l.loc.SetInputFiles(path, playwright.LocatorSetInputFilesOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
}

func (l *playwrightLocator) Focus(ctx context.Context) error {
	return l.loc.Focus(playwright.LocatorFocusOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
}

func (l *playwrightLocator) Type(ctx context.Context, text string) error {
	return l.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(30),
		Timeout: timeoutMs(ctx, DefaultActionTimeout+time.Duration(len(text))*30*time.Millisecond),
	})
}

func (l *playwrightLocator) Press(ctx context.Context, key string) error {
	return l.loc.Press(key, playwright.LocatorPressOptions{Timeout: timeoutMs(ctx, DefaultActionTimeout)})
}
