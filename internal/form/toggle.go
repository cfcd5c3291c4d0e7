package form

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/locator"
)

// ensureChecked is idempotent: an already checked control is left alone.
// Labels and custom widgets that refuse Check are force-clicked instead.
func ensureChecked(ctx context.Context, el browser.Locator) error {
	if checked, err := el.IsChecked(ctx); err == nil && checked {
		return nil
	}
	if err := el.Check(ctx, true); err != nil {
		return el.Click(ctx, browser.ClickOptions{Force: true})
	}
	return nil
}

// Check turns a checkbox or switch on.
func (e *Executor) Check(ctx context.Context, label string) error {
	norm := locator.Normalize(label)
	strategies := []locator.Strategy{
		locator.Query(browser.ByRole("checkbox", label)),
		locator.Query(browser.ByRole("switch", label)),
		locator.Query(browser.ByLabel(label)),
		css(`input[type="checkbox"][name*="%s" i]`, norm),
		css(`input[type="checkbox"][id*="%s" i]`, norm),
		css(`input[type="checkbox"][aria-label*="%s" i], [role="checkbox"][aria-label*="%s" i]`, label, label),
		css(`label:has-text("%s") input[type="checkbox"]`, label),
		css(`label:has-text("%s")`, label),
		&locator.ScriptStrategy{
			Label:  "label scan check",
			Script: checkByLabelScript,
			Arg:    map[string]any{"label": lower(label)},
		},
	}

	if err := e.chain(label, strategies...).Run(ctx, e.page, ensureChecked); err != nil {
		return e.failed("check", label, err)
	}
	e.succeeded("check", label)
	return nil
}

// Radio selects the option named by value. The question label, when it
// differs from the option, narrows the search to the enclosing group.
func (e *Executor) Radio(ctx context.Context, label, value string) error {
	if value == "" {
		value = label
	}
	norm := locator.Normalize(value)

	strategies := []locator.Strategy{
		locator.Query(browser.ByRole("radio", value).Exactly()),
		locator.Query(browser.ByLabel(value).Exactly()),
		locator.Query(browser.ByLabel(value)),
		css(`input[type="radio"][value="%s"]`, value),
		css(`input[type="radio"][value="%s"]`, lower(value)),
		css(`input[type="radio"][value^="%s" i]`, value),
		css(`input[type="radio"][value*="%s" i]`, norm),
		css(`label:has-text("%s") input[type="radio"]`, value),
		css(`label:has-text("%s")`, value),
	}
	if label != "" && label != value {
		strategies = append(strategies,
			css(`fieldset:has-text("%s") label:has-text("%s"), [role="radiogroup"]:has-text("%s") [role="radio"]:has-text("%s")`,
				label, value, label, value))
	}
	strategies = append(strategies,
		css(`[role="radio"]:has-text("%s")`, value),
		css(`div:has-text("%s") > input[type="radio"]`, value),
		locator.Query(browser.ByText(value).Exactly()),
		locator.Query(browser.ByText(value)).Limit(5),
		&locator.ScriptStrategy{
			Label:  "option text scan",
			Script: radioByTextScript,
			Arg:    map[string]any{"value": lower(value)},
		},
	)

	if err := e.chain(value, strategies...).Run(ctx, e.page, ensureChecked); err != nil {
		return e.failed("radio", value, err)
	}
	e.succeeded("radio", value, zap.String("question", label))
	return nil
}
