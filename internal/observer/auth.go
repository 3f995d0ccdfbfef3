package observer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "pathwright"

// ErrNoToken is returned when a request carries no viewer token.
var ErrNoToken = errors.New("no viewer token")

// TokenAuth issues and checks HS256 tokens for progress viewers.
type TokenAuth struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenAuth creates an authenticator keyed by secret.
func NewTokenAuth(secret string) *TokenAuth {
	return &TokenAuth{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Issue signs a token for subject that expires after ttl.
func (a *TokenAuth) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign viewer token: %w", err)
	}
	return signed, nil
}

// Verify checks token and returns its subject.
func (a *TokenAuth) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid viewer token: %w", err)
	}
	return claims.Subject, nil
}

// tokenFromRequest reads a bearer token from the Authorization header or,
// for browser clients that cannot set headers, the token query parameter.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
