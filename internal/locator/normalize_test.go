package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"First Name":      "firstname",
		"e-mail_address":  "emailaddress",
		"  LinkedIn URL ": "linkedinurl",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `Say \"hi\"`, Quote(`Say "hi"`))
	assert.Equal(t, `a\\b`, Quote(`a\b`))
	assert.Equal(t, "plain", Quote("plain"))
}
