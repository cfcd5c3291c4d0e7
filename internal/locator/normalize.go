package locator

import "strings"

var normalizer = strings.NewReplacer(" ", "", "-", "", "_", "")

// Normalize folds a label into the form used for attribute matching:
// lowercase with spaces, hyphens and underscores removed.
func Normalize(label string) string {
	return normalizer.Replace(strings.ToLower(label))
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote escapes s for use inside a double-quoted CSS attribute value or a
// :has-text() argument.
func Quote(s string) string {
	return quoter.Replace(s)
}
