package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hasherAlgorithm = "pbkdf2_sha256"
	saltLength      = 22
	saltAlphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultIterations = 870000
)

// Hasher produces and checks "pbkdf2_sha256$<iterations>$<salt>$<hash>"
// strings as stored in auth_user.password.
type Hasher struct {
	Iterations int
}

func (h Hasher) iterations() int {
	if h.Iterations <= 0 {
		return DefaultIterations
	}
	return h.Iterations
}

func (h Hasher) Encode(password string) (string, error) {
	salt, err := randomString(saltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return encodePassword(password, salt, h.iterations()), nil
}

// Verify checks password against an encoded hash. Unusable passwords
// (starting with "!") and unknown algorithms never match.
func (h Hasher) Verify(password, encoded string) bool {
	algorithm, rest, ok := strings.Cut(encoded, "$")
	if !ok || algorithm != hasherAlgorithm {
		return false
	}

	parts := strings.SplitN(rest, "$", 3)
	if len(parts) != 3 {
		return false
	}
	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return false
	}

	expected := encodePassword(password, parts[1], iterations)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(encoded)) == 1
}

func encodePassword(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", hasherAlgorithm, iterations, salt, base64.StdEncoding.EncodeToString(key))
}

func randomString(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(saltAlphabet)))
	for range n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(saltAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
