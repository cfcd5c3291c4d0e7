// internal/form/executor.go
package form

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
	"github.com/xkilldash9x/visionfill/internal/locator"
)

// ErrFileMissing is returned by the upload executors when the file to send
// is unset or does not exist.
var ErrFileMissing = errors.New("upload file missing")

const (
	defaultWaitInterval = 2 * time.Second
	defaultScrollDelta  = 500.0
	clearPause          = 100 * time.Millisecond
	suggestionPause     = 800 * time.Millisecond
	optionPause         = 200 * time.Millisecond
)

// Options carries the per-run inputs the executors need beyond the page.
type Options struct {
	ResumePath      string
	CoverLetterPath string
	// CoverLetterText replaces the model's value for cover letter fields.
	CoverLetterText string

	WaitInterval time.Duration
	ScrollDelta  float64

	// Pause defaults to time.Sleep. Tests replace it.
	Pause func(time.Duration)
	// FileExists defaults to an os.Stat check for a regular file.
	FileExists func(path string) bool
}

// Executor performs semantic form interactions on a single page. Each
// operation resolves its target through a locator chain and returns a
// non-nil error only when every strategy has been exhausted.
type Executor struct {
	page   browser.Page
	logger *zap.Logger
	opts   Options
}

// NewExecutor creates an Executor bound to page.
func NewExecutor(page browser.Page, logger *zap.Logger, opts Options) *Executor {
	if opts.Pause == nil {
		opts.Pause = time.Sleep
	}
	if opts.FileExists == nil {
		opts.FileExists = regularFileExists
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = defaultWaitInterval
	}
	if opts.ScrollDelta <= 0 {
		opts.ScrollDelta = defaultScrollDelta
	}
	return &Executor{
		page:   page,
		logger: logger.Named("form"),
		opts:   opts,
	}
}

// CoverLetterText returns the loaded cover letter, if any.
func (e *Executor) CoverLetterText() string { return e.opts.CoverLetterText }

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// chain builds the default chain: visible candidates only, with a
// recovery scroll.
func (e *Executor) chain(target string, strategies ...locator.Strategy) *locator.Chain {
	return &locator.Chain{
		Target:         target,
		Strategies:     strategies,
		RequireVisible: true,
		Recovery:       true,
		Logger:         e.logger,
		Pause:          e.opts.Pause,
	}
}

func (e *Executor) pause(d time.Duration) { e.opts.Pause(d) }

func (e *Executor) succeeded(action, target string, fields ...zap.Field) {
	e.logger.Info("Action succeeded.",
		append([]zap.Field{zap.String("action", action), zap.String("target", target)}, fields...)...)
}

func (e *Executor) failed(action, target string, err error) error {
	e.logger.Warn("Action failed.",
		zap.String("action", action), zap.String("target", target), zap.Error(err))
	return fmt.Errorf("%s %q: %w", action, target, err)
}

// css builds a CSS query, quoting every argument.
func css(format string, args ...string) locator.Strategy {
	quoted := make([]any, len(args))
	for i, a := range args {
		quoted[i] = locator.Quote(a)
	}
	return locator.Query(browser.CSS(fmt.Sprintf(format, quoted...)))
}

// IsCoverLetterField reports whether label names a cover letter field.
func IsCoverLetterField(label string) bool {
	l := strings.ToLower(label)
	return strings.Contains(l, "cover") && strings.Contains(l, "letter")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
