package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/browser/browsertest"
)

func newChain(t *testing.T, strategies ...Strategy) *Chain {
	t.Helper()
	return &Chain{
		Target:         "First Name",
		Strategies:     strategies,
		RequireVisible: true,
		Recovery:       true,
		Logger:         zaptest.NewLogger(t),
		Pause:          func(time.Duration) {},
	}
}

func fillX(ctx context.Context, el browser.Locator) error {
	return el.Fill(ctx, "x")
}

func TestChain_EarlierStrategyIsAuthoritative(t *testing.T) {
	page := browsertest.NewPage()
	first := browsertest.NewElement("by-role")
	second := browsertest.NewElement("by-label")
	page.On(browser.ByRole("textbox", "First Name"), first)
	page.On(browser.ByLabel("First Name"), second)

	c := newChain(t,
		Query(browser.ByRole("textbox", "First Name")),
		Query(browser.ByLabel("First Name")),
	)
	require.NoError(t, c.Run(context.Background(), page, fillX))

	assert.Equal(t, []string{"x"}, first.Fills)
	assert.Empty(t, second.Fills)
	assert.Equal(t, 1, first.Scrolled)
	assert.Empty(t, page.Wheels, "no recovery scroll when the first pass succeeds")
}

func TestChain_SkipsInvisibleAndFailingCandidates(t *testing.T) {
	page := browsertest.NewPage()
	hidden := browsertest.NewElement("hidden").Hidden()
	broken := browsertest.NewElement("broken")
	broken.FillErr = errors.New("element is disabled")
	good := browsertest.NewElement("good")
	page.On(browser.ByLabel("First Name"), hidden)
	page.On(browser.CSS(`input[name*="firstname" i]`), broken, good)

	c := newChain(t,
		Query(browser.ByLabel("First Name")),
		Query(browser.CSS(`input[name*="firstname" i]`)),
	)
	require.NoError(t, c.Run(context.Background(), page, fillX))

	assert.Empty(t, hidden.Fills)
	assert.Empty(t, broken.Fills)
	assert.Equal(t, []string{"x"}, good.Fills)
}

func TestChain_RecoveryPassAfterScroll(t *testing.T) {
	page := browsertest.NewPage()
	lazy := browsertest.NewElement("below-the-fold")

	// The element only renders once the page has been scrolled.
	appears := FuncStrategy{Label: "lazy", Fn: func(ctx context.Context, p browser.Page) (Resolution, error) {
		if len(page.Wheels) == 0 {
			return Resolution{}, nil
		}
		page.On(browser.CSS("#lazy"), lazy)
		return Resolution{Locator: p.Locate(browser.CSS("#lazy"))}, nil
	}}

	c := newChain(t, appears)
	c.ScrollDelta = DropdownScrollDelta
	require.NoError(t, c.Run(context.Background(), page, fillX))

	assert.Equal(t, []float64{DropdownScrollDelta}, page.Wheels)
	assert.Equal(t, []string{"x"}, lazy.Fills)
}

func TestChain_DefaultScrollDelta(t *testing.T) {
	page := browsertest.NewPage()
	c := newChain(t, Query(browser.ByLabel("Missing")))

	err := c.Run(context.Background(), page, fillX)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotResolved)
	assert.Contains(t, err.Error(), "First Name")
	assert.Equal(t, []float64{DefaultScrollDelta}, page.Wheels)
}

func TestChain_NoRecoveryWhenDisabled(t *testing.T) {
	page := browsertest.NewPage()
	c := newChain(t, Query(browser.ByLabel("Missing")))
	c.Recovery = false

	err := c.Run(context.Background(), page, fillX)
	assert.ErrorIs(t, err, ErrNotResolved)
	assert.Empty(t, page.Wheels)
}

func TestChain_ScriptRunsOnlyAfterBothPasses(t *testing.T) {
	page := browsertest.NewPage()
	var wheelsAtScript int
	page.EvaluateFunc = func(script string, arg any) (any, error) {
		wheelsAtScript = len(page.Wheels)
		assert.Equal(t, "First Name", arg)
		return true, nil
	}

	c := newChain(t,
		&ScriptStrategy{Label: "label scan", Script: "(l) => true", Arg: "First Name"},
		Query(browser.ByLabel("First Name")),
	)
	acted := false
	err := c.Run(context.Background(), page, func(context.Context, browser.Locator) error {
		acted = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, acted, "script strategies perform the interaction themselves")
	assert.Equal(t, 1, wheelsAtScript, "script must run after the recovery pass")
	assert.Len(t, page.Evaluated, 1)
}

func TestChain_FallbackQueryRunsAfterPassesBeforeScripts(t *testing.T) {
	page := browsertest.NewPage()
	area := browsertest.NewElement("textarea")
	page.On(browser.CSS("textarea:visible"), area)

	c := newChain(t,
		Query(browser.CSS("textarea:visible")).AsFallback(),
		&ScriptStrategy{Label: "label scan", Script: "(l) => true"},
		Query(browser.ByLabel("First Name")),
	)
	require.NoError(t, c.Run(context.Background(), page, fillX))

	assert.Equal(t, []string{"x"}, area.Fills)
	assert.Len(t, page.Wheels, 1, "fallback waits for the recovery pass")
	assert.Empty(t, page.Evaluated, "earlier fallback wins over the script")
	assert.Equal(t, 1, countQuery(page.Queries, browser.CSS("textarea:visible").String()))
}

func countQuery(queries []string, q string) int {
	n := 0
	for _, got := range queries {
		if got == q {
			n++
		}
	}
	return n
}

func TestChain_ScriptNotHandled(t *testing.T) {
	page := browsertest.NewPage()
	c := newChain(t, &ScriptStrategy{Label: "scan", Script: "() => false"})
	assert.ErrorIs(t, c.Run(context.Background(), page, fillX), ErrNotResolved)
}

func TestChain_PreferLast(t *testing.T) {
	page := browsertest.NewPage()
	a := browsertest.NewElement("a")
	b := browsertest.NewElement("b")
	page.On(browser.CSS(`:visible:has-text("France")`), a, b)

	c := newChain(t, Query(browser.CSS(`:visible:has-text("France")`)).Last())
	require.NoError(t, c.Run(context.Background(), page, fillX))

	assert.Empty(t, a.Fills)
	assert.Equal(t, []string{"x"}, b.Fills)
}

func TestChain_ScanLimit(t *testing.T) {
	page := browsertest.NewPage()
	els := make([]*browsertest.Element, 4)
	for i := range els {
		els[i] = browsertest.NewElement("hidden").Hidden()
	}
	els[3].Visible = true
	page.On(browser.ByText("Yes"), els[0], els[1], els[2], els[3])

	c := newChain(t, Query(browser.ByText("Yes")))
	c.Recovery = false
	assert.ErrorIs(t, c.Run(context.Background(), page, fillX), ErrNotResolved,
		"the fourth match is beyond the default scan window")

	c = newChain(t, Query(browser.ByText("Yes")).Limit(5))
	require.NoError(t, c.Run(context.Background(), page, fillX))
	assert.Equal(t, []string{"x"}, els[3].Fills)
}

func TestChain_HiddenAllowedWhenVisibilityNotRequired(t *testing.T) {
	page := browsertest.NewPage()
	file := browsertest.NewElement("file").Hidden()
	page.On(browser.CSS(`input[type="file"]`), file)

	c := newChain(t, Query(browser.CSS(`input[type="file"]`)))
	c.RequireVisible = false
	err := c.Run(context.Background(), page, func(ctx context.Context, el browser.Locator) error {
		return el.SetInputFiles(ctx, "/tmp/resume.pdf")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/resume.pdf"}, file.Files)
	assert.Zero(t, file.Scrolled)
}

func TestPositionalStrategy(t *testing.T) {
	page := browsertest.NewPage()
	first := browsertest.NewElement("first").Hidden()
	second := browsertest.NewElement("second").Hidden()
	page.On(browser.CSS(`input[type="file"]`), first, second)

	secondIfMany := func(n int) int {
		switch {
		case n == 1:
			return 0
		case n >= 2:
			return 1
		}
		return -1
	}
	c := newChain(t, &PositionalStrategy{Query: browser.CSS(`input[type="file"]`), Pick: secondIfMany})
	c.RequireVisible = false
	err := c.Run(context.Background(), page, func(ctx context.Context, el browser.Locator) error {
		return el.SetInputFiles(ctx, "cover.pdf")
	})
	require.NoError(t, err)
	assert.Empty(t, first.Files)
	assert.Equal(t, []string{"cover.pdf"}, second.Files)
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	page := browsertest.NewPage()
	page.On(browser.ByLabel("First Name"), browsertest.NewElement("el"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newChain(t, Query(browser.ByLabel("First Name")))
	c.Recovery = false
	assert.ErrorIs(t, c.Run(ctx, page, fillX), ErrNotResolved)
}
