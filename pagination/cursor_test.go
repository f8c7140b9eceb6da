package pagination

import (
	"encoding/base64"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cursor_Encode(t *testing.T) {
	tests := []struct {
		name   string
		cursor Cursor
		want   string
	}{
		{"empty", Cursor{}, ""},
		{"offset only", Cursor{Offset: 15}, "o=15"},
		{"reverse only", Cursor{Reverse: true}, "r=1"},
		{"all tokens keep order", Cursor{Offset: 2, Reverse: true, Position: lo.ToPtr("10")}, "o=2&r=1&p=10"},
		{"position is query escaped", Cursor{Position: lo.ToPtr("2024-01-01T10:00:00+03:00")}, "p=2024-01-01T10%3A00%3A00%2B03%3A00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := base64.StdEncoding.DecodeString(tt.cursor.Encode())
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))
		})
	}
}

func Test_DecodeCursor(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		token   string
		want    Cursor
		wantErr bool
	}{
		{"empty token is first page", "", Cursor{}, false},
		{"full cursor", enc("o=2&r=1&p=abc"), Cursor{Offset: 2, Reverse: true, Position: lo.ToPtr("abc")}, false},
		{"blank position is nil", enc("p="), Cursor{}, false},
		{"offset cut off", enc("o=5000"), Cursor{Offset: OffsetCutoff}, false},
		{"reverse zero", enc("r=0"), Cursor{}, false},
		{"not base64", "%%%", Cursor{}, true},
		{"negative offset", enc("o=-1"), Cursor{}, true},
		{"non numeric offset", enc("o=x"), Cursor{}, true},
		{"non numeric reverse", enc("r=yes"), Cursor{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCursor(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCursor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Cursor_RoundTrip(t *testing.T) {
	for _, c := range []Cursor{
		{},
		{Offset: 3},
		{Reverse: true, Position: lo.ToPtr("a b&c=d")},
		{Offset: 1, Reverse: true, Position: lo.ToPtr("42")},
	} {
		got, err := DecodeCursor(c.Encode())
		require.NoError(t, err)
		assert.Equal(t, c, got)
		assert.Equal(t, c.IsEmpty(), got.IsEmpty())
	}
}
