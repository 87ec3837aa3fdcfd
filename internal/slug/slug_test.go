package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Body Mass Index", "body-mass-index"},
		{"  Loan   Payment  ", "loan-payment"},
		{"Café Crème Ratio", "cafe-creme-ratio"},
		{"Ohm's Law (V=IR)", "ohm-s-law-v-ir"},
		{"already-a-slug", "already-a-slug"},
		{"UPPER_case", "upper-case"},
		{"---", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, From(tt.in))
		})
	}
}

func TestOrToken(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "body-mass-index", OrToken("Body Mass Index"))
	assert.Empty(t, OrToken("   "))

	cjk := OrToken("体重指数")
	assert.Regexp(t, `^calculator-[0-9a-f]{8}$`, cjk)
	assert.Equal(t, cjk, OrToken(" 体重指数 "), "stable for the same title")
	assert.NotEqual(t, cjk, OrToken("身高"))
}
