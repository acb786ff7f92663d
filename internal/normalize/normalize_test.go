package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase passthrough", "green roof", "green roof"},
		{"case folding", "Sedum ROOF", "sedum roof"},
		{"whitespace collapse", "  click \t here \n now ", "click here now"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Sedum-Roof lifespan: 30-50 years!")
	assert.Equal(t, []string{"sedum", "roof", "lifespan", "30", "50", "years"}, got)
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, TokenOverlap("sedum roof", "the Sedum roof lasts decades"))
	assert.Equal(t, 0.5, TokenOverlap("sedum roof", "a flat roof"))
	assert.Equal(t, 0.0, TokenOverlap("", "anything"))
}
