// Package locator resolves a free-text target description to a live element
// by walking an ordered list of strategies, escalating from structured
// queries to a scroll-and-retry pass and finally to DOM scripts.
package locator

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/visionfill/internal/browser"
)

// Resolution is what a strategy hands back to the chain.
type Resolution struct {
	// Locator may match zero or more elements. Nil means no candidates.
	Locator browser.Locator
	// PreferLast scans matches from the end.
	PreferLast bool
	// Scan caps how many matches are tried. Zero uses the chain default.
	Scan int
	// Handled means the strategy already performed the interaction.
	Handled bool
}

// Strategy is one way of finding the target.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, page browser.Page) (Resolution, error)
}

// lastResort marks strategies that only run after both passes fail.
type lastResort interface {
	LastResort() bool
}

// QueryStrategy resolves a structured browser query.
type QueryStrategy struct {
	Query      browser.Query
	PreferLast bool
	Scan       int
	// Fallback defers the query until both passes have failed.
	Fallback bool
}

// Query wraps q as a strategy.
func Query(q browser.Query) *QueryStrategy { return &QueryStrategy{Query: q} }

// Last makes the strategy prefer the final match.
func (s *QueryStrategy) Last() *QueryStrategy {
	s.PreferLast = true
	return s
}

// Limit caps the number of matches scanned.
func (s *QueryStrategy) Limit(n int) *QueryStrategy {
	s.Scan = n
	return s
}

// AsFallback runs the query with the last-resort strategies, in list order.
func (s *QueryStrategy) AsFallback() *QueryStrategy {
	s.Fallback = true
	return s
}

func (s *QueryStrategy) Name() string     { return s.Query.String() }
func (s *QueryStrategy) LastResort() bool { return s.Fallback }

func (s *QueryStrategy) Resolve(_ context.Context, page browser.Page) (Resolution, error) {
	return Resolution{Locator: page.Locate(s.Query), PreferLast: s.PreferLast, Scan: s.Scan}, nil
}

// PositionalStrategy picks one match by index, computed from the match
// count. Pick returns -1 to decline.
type PositionalStrategy struct {
	Query browser.Query
	Pick  func(count int) int
	Label string
}

func (s *PositionalStrategy) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "positional " + s.Query.String()
}

func (s *PositionalStrategy) Resolve(ctx context.Context, page browser.Page) (Resolution, error) {
	loc := page.Locate(s.Query)
	n, err := loc.Count(ctx)
	if err != nil {
		return Resolution{}, err
	}
	idx := s.Pick(n)
	if idx < 0 || idx >= n {
		return Resolution{}, nil
	}
	return Resolution{Locator: loc.Nth(idx), Scan: 1}, nil
}

// ScriptStrategy evaluates a DOM script that performs the interaction
// itself and reports whether it did.
type ScriptStrategy struct {
	Label  string
	Script string
	Arg    any
}

func (s *ScriptStrategy) Name() string     { return "script " + s.Label }
func (s *ScriptStrategy) LastResort() bool { return true }

func (s *ScriptStrategy) Resolve(ctx context.Context, page browser.Page) (Resolution, error) {
	out, err := page.Evaluate(ctx, s.Script, s.Arg)
	if err != nil {
		return Resolution{}, fmt.Errorf("script %s failed: %w", s.Label, err)
	}
	ok, _ := out.(bool)
	return Resolution{Handled: ok}, nil
}

// FuncStrategy adapts a plain function.
type FuncStrategy struct {
	Label string
	Fn    func(ctx context.Context, page browser.Page) (Resolution, error)
}

func (s FuncStrategy) Name() string { return s.Label }

func (s FuncStrategy) Resolve(ctx context.Context, page browser.Page) (Resolution, error) {
	return s.Fn(ctx, page)
}
