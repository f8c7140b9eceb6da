package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Hasher_Encode(t *testing.T) {
	h := Hasher{Iterations: 1000}

	encoded, err := h.Encode("correct horse")
	require.NoError(t, err)

	parts := strings.Split(encoded, "$")
	require.Len(t, parts, 4)
	assert.Equal(t, "pbkdf2_sha256", parts[0])
	assert.Equal(t, "1000", parts[1])
	assert.Len(t, parts[2], saltLength)
	assert.True(t, h.Verify("correct horse", encoded))

	other, err := h.Encode("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salt must be random")
}

func Test_Hasher_Verify(t *testing.T) {
	const known = "pbkdf2_sha256$1000$seasalt$mQnueSakb748zqBAC1tmWVZsZbi2zPGZarEzTGdfmso="

	tests := []struct {
		name     string
		password string
		encoded  string
		want     bool
	}{
		{"known hash", "correct horse", known, true},
		{"wrong password", "battery staple", known, false},
		{"iterations come from the hash", "correct horse", known, true},
		{"unusable password", "correct horse", "!" + known, false},
		{"unknown algorithm", "correct horse", strings.Replace(known, "pbkdf2_sha256", "md5", 1), false},
		{"truncated", "correct horse", "pbkdf2_sha256$1000$seasalt", false},
		{"bad iterations", "correct horse", "pbkdf2_sha256$x$seasalt$abc", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Hasher{Iterations: 5000}
			assert.Equal(t, tt.want, h.Verify(tt.password, tt.encoded))
		})
	}
}

func Test_Hasher_DefaultIterations(t *testing.T) {
	assert.Equal(t, DefaultIterations, Hasher{}.iterations())
}
