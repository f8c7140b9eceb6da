package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_levenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"created", "created", 0},
		{"", "title", 5},
		{"pages", "", 5},
		{"creatd", "created", 1},
		{"titel", "title", 2},
		{"ñame", "name", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)))
			assert.Equal(t, tt.want, levenshtein([]rune(tt.b), []rune(tt.a)), "distance is symmetric")
		})
	}
}
