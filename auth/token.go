package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Alp4ka/fango/config"
)

const (
	TokenTypeAccess = "access"

	defaultAccessTokenExpire = 15 * time.Minute
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidHeader = errors.New("invalid authorization header")
)

type Claims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Token is the login response.
type Token struct {
	Access string `json:"access"`
}

// Issuer signs and verifies access tokens.
type Issuer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	expire    time.Duration
	now       func() time.Time
}

// NewIssuer builds an issuer from settings. HS* algorithms sign with
// SECRET_KEY and verify with PUBLIC_KEY when set, RS* algorithms expect PEM
// encoded keys in both.
func NewIssuer(s *config.Settings) (*Issuer, error) {
	method := jwt.GetSigningMethod(s.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", s.Algorithm)
	}

	iss := &Issuer{
		method: method,
		expire: time.Duration(s.AccessTokenExpireMinutes) * time.Minute,
		now:    time.Now,
	}
	if iss.expire <= 0 {
		iss.expire = defaultAccessTokenExpire
	}

	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		iss.signKey = []byte(s.SecretKey)
		iss.verifyKey = []byte(s.SecretKey)
		if s.PublicKey != "" {
			iss.verifyKey = []byte(s.PublicKey)
		}
	case *jwt.SigningMethodRSA:
		private, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.SecretKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		public, err := jwt.ParseRSAPublicKeyFromPEM([]byte(s.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		iss.signKey, iss.verifyKey = private, public
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", s.Algorithm)
	}

	return iss, nil
}

// Issue creates an access token for the user id.
func (i *Issuer) Issue(userID int64) (string, error) {
	claims := Claims{
		UserID:    userID,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.expire)),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a raw token. Audience is not checked.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.verifyKey, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	return claims, nil
}

// Decode parses an Authorization header value of the form "<scheme> <token>".
// A header that is not exactly two words is an error. A scheme other than
// Bearer yields nil claims and no error, leaving the request to other
// authentication schemes.
func (i *Issuer) Decode(header string) (*Claims, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return nil, ErrInvalidHeader
	}
	if parts[0] != "Bearer" {
		return nil, nil
	}

	return i.Parse(parts[1])
}
