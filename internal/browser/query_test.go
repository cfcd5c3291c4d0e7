package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryString(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"role with name", ByRole("textbox", "First Name"), `role:textbox="First Name"`},
		{"role exact", ByRole("radio", "Yes").Exactly(), `role:radio="Yes" exact`},
		{"label", ByLabel("Email"), `label="Email"`},
		{"placeholder", ByPlaceholder("City"), `placeholder="City"`},
		{"text exact", ByText("France").Exactly(), `text="France" exact`},
		{"css with quotes", CSS(`input[name*="first" i]`), `css="input[name*=\"first\" i]"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.String())
		})
	}
}

func TestQueryExactlyDoesNotMutate(t *testing.T) {
	base := ByLabel("Email")
	exact := base.Exactly()
	assert.False(t, base.Exact)
	assert.True(t, exact.Exact)
}
