package form

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/locator"
)

// suggestionContainers are probed, in order, for an autocomplete panel
// after a fill.
var suggestionContainers = []string{
	`[role="listbox"]`,
	`.pac-container`,
	`.ui-menu`,
	`.dropdown-menu`,
	`div[class*="suggestions"]`,
	`div[class*="results"]`,
	`div[class*="option-list"]`,
	`ul[class*="list"]`,
}

func coverLetterStrategies() []locator.Strategy {
	return []locator.Strategy{
		css(`textarea[name*="cover" i]`),
		css(`textarea#cover_letter`),
		css(`textarea[data-field*="cover" i]`),
		css(`textarea[placeholder*="cover" i]`),
	}
}

// Fill clears and sets a text input or textarea. Cover letter fields take
// the loaded cover letter text instead of value when one is available.
func (e *Executor) Fill(ctx context.Context, label, value string) error {
	coverLetter := IsCoverLetterField(label)
	if coverLetter && e.opts.CoverLetterText != "" {
		e.logger.Debug("Using loaded cover letter text.", zap.String("target", label))
		value = e.opts.CoverLetterText
	}

	norm := locator.Normalize(label)
	var strategies []locator.Strategy
	if coverLetter {
		strategies = coverLetterStrategies()
	}
	strategies = append(strategies,
		locator.Query(browser.ByRole("textbox", label)),
		locator.Query(browser.ByLabel(label)),
		locator.Query(browser.ByPlaceholder(label)),
		css(`input[name*="%s" i], textarea[name*="%s" i]`, norm, norm),
		css(`input[id*="%s" i], textarea[id*="%s" i]`, norm, norm),
		css(`[aria-label*="%s" i]`, label),
		css(`label:has-text("%s") + input, label:has-text("%s") + textarea`, label, label),
		css(`label:has-text("%s") ~ input`, label),
		css(`label:has-text("%s") ~ div input`, label),
		css(`div:has-text("%s") input`, label),
	)
	if coverLetter {
		// Application forms rarely carry more than one free-text area.
		strategies = append(strategies, locator.Query(browser.CSS("textarea:visible")).AsFallback().Limit(1))
	}
	strategies = append(strategies, &locator.ScriptStrategy{
		Label:  "label scan fill",
		Script: fillByLabelScript,
		Arg:    map[string]any{"label": lower(label), "value": value},
	})

	err := e.chain(label, strategies...).Run(ctx, e.page, func(ctx context.Context, el browser.Locator) error {
		if err := el.Fill(ctx, ""); err != nil {
			return err
		}
		e.pause(clearPause)
		return el.Fill(ctx, value)
	})
	if err != nil {
		return e.failed("fill", label, err)
	}
	e.succeeded("fill", label, zap.String("value", truncate(value, 40)))

	e.pickSuggestion(ctx, value)
	return nil
}

// pickSuggestion clicks a matching entry if the fill opened an autocomplete
// panel. It never fails the fill.
func (e *Executor) pickSuggestion(ctx context.Context, value string) {
	if value == "" {
		return
	}
	e.pause(suggestionPause)

	options := []browser.Query{
		browser.ByText(value).Exactly(),
		browser.ByText(value),
		browser.CSS(`[role="option"], li, .pac-item`),
	}
	for _, sel := range suggestionContainers {
		box := e.page.Locate(browser.CSS(sel + ":visible")).First()
		if n, err := box.Count(ctx); err != nil || n == 0 {
			continue
		}
		for _, q := range options {
			opt := box.Locate(q).First()
			if n, err := opt.Count(ctx); err != nil || n == 0 {
				continue
			}
			if visible, err := opt.IsVisible(ctx); err != nil || !visible {
				continue
			}
			if err := opt.Click(ctx, browser.ClickOptions{Force: true}); err != nil {
				e.logger.Debug("Suggestion click failed.", zap.String("container", sel), zap.Error(err))
				continue
			}
			e.logger.Debug("Picked autocomplete suggestion.",
				zap.String("container", sel), zap.String("match", q.String()))
			return
		}
	}
}
