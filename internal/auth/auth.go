// Package auth validates the credentials integration callers present: the
// shared integration key and a bearer token issued by the storefront.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
)

// Caller is the identity carried by a storefront token.
type Caller struct {
	ID    string
	Email string
}

// Claims matches the payload the storefront signs: {"id", "email"}.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Validator struct {
	apiKey      []byte
	tokenSecret []byte
}

func NewValidator(apiKey, tokenSecret string) *Validator {
	return &Validator{apiKey: []byte(apiKey), tokenSecret: []byte(tokenSecret)}
}

// CheckAPIKey compares the x-api-key header value in constant time. An
// unconfigured key rejects every caller.
func (v *Validator) CheckAPIKey(key string) error {
	if len(v.apiKey) == 0 || key == "" {
		return fmt.Errorf("auth: missing integration API key: %w", domain.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(key), v.apiKey) != 1 {
		return fmt.Errorf("auth: invalid integration API key: %w", domain.ErrUnauthorized)
	}
	return nil
}

// ParseBearer validates an Authorization header of the form "Bearer <jwt>".
func (v *Validator) ParseBearer(header string) (Caller, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return Caller{}, fmt.Errorf("auth: missing Authorization header: %w", domain.ErrUnauthorized)
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.tokenSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Caller{}, fmt.Errorf("auth: invalid or expired token: %w", errors.Join(domain.ErrUnauthorized, err))
	}
	if claims.ID == "" {
		return Caller{}, fmt.Errorf("auth: user id not found in token: %w", domain.ErrUnauthorized)
	}

	return Caller{ID: claims.ID, Email: claims.Email}, nil
}

// Issue signs a token for c. The storefront normally does this; the CLI uses
// it for local testing.
func (v *Validator) Issue(c Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    c.ID,
		Email: c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
