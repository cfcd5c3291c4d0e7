package form

import (
	"context"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/locator"
)

// Click presses a button or link. A normal click gets the default grace
// period; if it fails the click is retried with actionability checks off.
func (e *Executor) Click(ctx context.Context, label string) error {
	strategies := []locator.Strategy{
		locator.Query(browser.ByRole("button", label)),
		locator.Query(browser.ByRole("link", label)),
		locator.Query(browser.ByText(label).Exactly()),
		locator.Query(browser.ByText(label)),
		css(`[aria-label="%s"]`, label),
		css(`button:has-text("%s")`, label),
		css(`a:has-text("%s")`, label),
		css(`[role="button"]:has-text("%s")`, label),
		css(`input[type="submit"][value="%s" i]`, label),
		&locator.ScriptStrategy{
			Label:  "clickable text scan",
			Script: clickByTextScript,
			Arg:    map[string]any{"label": lower(label)},
		},
	}

	if err := e.chain(label, strategies...).Run(ctx, e.page, clickWithForceFallback); err != nil {
		return e.failed("click", label, err)
	}
	e.succeeded("click", label)
	return nil
}

func clickWithForceFallback(ctx context.Context, el browser.Locator) error {
	if err := el.Click(ctx, browser.ClickOptions{Timeout: browser.DefaultActionTimeout}); err == nil {
		return nil
	}
	return el.Click(ctx, browser.ClickOptions{Force: true})
}
