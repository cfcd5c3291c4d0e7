package browser

import (
	"fmt"
	"strings"
)

// Engine selects how a Query is resolved against the page.
type Engine string

const (
	EngineRole        Engine = "role"
	EngineLabel       Engine = "label"
	EnginePlaceholder Engine = "placeholder"
	EngineText        Engine = "text"
	EngineCSS         Engine = "css"
)

// Query is a driver-neutral element query. The playwright adapter maps each
// engine onto the matching GetBy* call; the CSS engine accepts playwright's
// extended selectors (:has-text, :visible, >>).
type Query struct {
	Engine Engine
	Role   string // Only for EngineRole.
	Text   string // Accessible name, label, placeholder, text, or CSS selector.
	Exact  bool
}

func ByRole(role, name string) Query { return Query{Engine: EngineRole, Role: role, Text: name} }
func ByLabel(text string) Query      { return Query{Engine: EngineLabel, Text: text} }
func ByPlaceholder(text string) Query {
	return Query{Engine: EnginePlaceholder, Text: text}
}
func ByText(text string) Query  { return Query{Engine: EngineText, Text: text} }
func CSS(selector string) Query { return Query{Engine: EngineCSS, Text: selector} }

// Exactly returns a copy of q that requires an exact, case-sensitive match.
func (q Query) Exactly() Query {
	q.Exact = true
	return q
}

// String renders q canonically. Fakes and logs key on it.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(string(q.Engine))
	if q.Engine == EngineRole {
		b.WriteString(":" + q.Role)
	}
	fmt.Fprintf(&b, "=%q", q.Text)
	if q.Exact {
		b.WriteString(" exact")
	}
	return b.String()
}
