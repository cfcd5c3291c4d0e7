package form

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/locator"
)

const (
	dropdownOpenPause   = 500 * time.Millisecond
	optionRenderPause   = 300 * time.Millisecond
	keyboardSettlePause = 500 * time.Millisecond
)

// Select picks value in the dropdown named label. Native <select> elements
// are tried first; the custom widget path only runs when no native control
// accepts the value, and typing into the field is the final fallback.
func (e *Executor) Select(ctx context.Context, label, value string) error {
	norm := locator.Normalize(label)

	if err := e.selectNative(ctx, label, norm, value); err == nil {
		e.succeeded("select", label, zap.String("value", value), zap.String("method", "native"))
		return nil
	}
	e.logger.Debug("No native select accepted the value, trying custom dropdown.", zap.String("target", label))

	if err := e.selectCustom(ctx, label, norm, value); err == nil {
		e.succeeded("select", label, zap.String("value", value), zap.String("method", "custom"))
		return nil
	}
	e.logger.Debug("Custom dropdown failed, trying keyboard entry.", zap.String("target", label))

	if err := e.selectByKeyboard(ctx, label, value); err == nil {
		e.succeeded("select", label, zap.String("value", value), zap.String("method", "keyboard"))
		return nil
	}
	return e.failed("select", label, fmt.Errorf("%w: option %q", locator.ErrNotResolved, value))
}

func (e *Executor) selectNative(ctx context.Context, label, norm, value string) error {
	c := e.chain(label,
		locator.Query(browser.ByLabel(label)),
		css(`select[name*="%s" i]`, norm),
		css(`select[id*="%s" i]`, norm),
		css(`select[aria-label*="%s" i]`, label),
		css(`label:has-text("%s") + select`, label),
		css(`label:has-text("%s") ~ select`, label),
	)
	c.Recovery = false
	return c.Run(ctx, e.page, func(ctx context.Context, el browser.Locator) error {
		if err := el.SelectOption(ctx, browser.OptionByLabel, value); err == nil {
			return nil
		}
		return el.SelectOption(ctx, browser.OptionByValue, value)
	})
}

func (e *Executor) selectCustom(ctx context.Context, label, norm, value string) error {
	trigger := e.chain(label,
		locator.Query(browser.ByRole("combobox", label)),
		locator.Query(browser.ByLabel(label)),
		css(`[aria-label*="%s" i]`, label),
		css(`[data-testid*="%s" i]`, norm),
		css(`label:has-text("%s") + div`, label),
		css(`label:has-text("%s") ~ [class*="select"]`, label),
		css(`[class*="select"]:has-text("%s")`, label),
		css(`[class*="dropdown"]:has-text("%s")`, label),
		css(`.select__control:has-text("%s"), .MuiSelect-root:has-text("%s"), .ant-select:has-text("%s")`, label, label, label),
	)
	trigger.ScrollDelta = locator.DropdownScrollDelta
	err := trigger.Run(ctx, e.page, func(ctx context.Context, el browser.Locator) error {
		return el.Click(ctx, browser.ClickOptions{Force: true})
	})
	if err != nil {
		// The panel may already be open or always rendered.
		e.logger.Debug("No dropdown trigger found, searching options anyway.", zap.String("target", label))
	} else {
		e.pause(dropdownOpenPause)
	}
	e.pause(optionRenderPause)

	// Option panels are often portal-rendered outside the field, so the
	// search covers the whole page.
	option := e.chain(value,
		locator.Query(browser.ByRole("option", value).Exactly()),
		locator.Query(browser.ByText(value).Exactly()),
		locator.Query(browser.ByRole("option", value)),
		locator.Query(browser.ByRole("menuitem", value)),
		css(`li:has-text("%s")`, value),
		css(`[data-value="%s" i]`, value),
		css(`[role="listbox"] >> text="%s"`, value),
		css(`.select__option:has-text("%s"), .MuiMenuItem-root:has-text("%s"), .ant-select-item:has-text("%s")`, value, value, value),
		locator.Query(browser.CSS(fmt.Sprintf(`:visible:has-text("%s")`, locator.Quote(value)))).Last(),
	)
	option.Recovery = false
	return option.Run(ctx, e.page, func(ctx context.Context, el browser.Locator) error {
		if err := el.Click(ctx, browser.ClickOptions{Force: true}); err != nil {
			return err
		}
		e.pause(optionPause)
		return nil
	})
}

func (e *Executor) selectByKeyboard(ctx context.Context, label, value string) error {
	field := e.chain(label,
		locator.Query(browser.ByRole("combobox", label)),
		locator.Query(browser.ByLabel(label)),
		css(`[aria-label*="%s" i]`, label),
	)
	field.Recovery = false
	return field.Run(ctx, e.page, func(ctx context.Context, el browser.Locator) error {
		if err := el.Focus(ctx); err != nil {
			return err
		}
		if err := el.Type(ctx, value); err != nil {
			return err
		}
		e.pause(keyboardSettlePause)
		return el.Press(ctx, "Enter")
	})
}
