// Package tokens issues and validates the HS256 bearer tokens that gate
// the operator-facing forensics API. Attacker-facing endpoints never use
// these.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// DefaultTTL is the operator token lifetime.
const DefaultTTL = 12 * time.Hour

type Claims struct {
	Operator string   `json:"operator"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate mints a signed operator token.
func (tg *TokenGenerator) Generate(operator string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Operator: operator,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "chameleon",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

// Validate parses and verifies an operator token.
func (tg *TokenGenerator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
