package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"endorsegraph/types/ids"
)

// CapabilityClaims are the claims carried by an API capability token. The
// subject is the caller's hex address; Roles holds "endorser" and/or "admin".
type CapabilityClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 capability tokens minted by the operator.
type TokenVerifier struct {
	Secret []byte
}

// VerifyToken parses and validates a token, returning its claims.
func (v *TokenVerifier) VerifyToken(tokenString string) (*CapabilityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CapabilityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*CapabilityClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid capability token or claims")
	}
	return claims, nil
}

// Predicate adapts token claims to the core's authorization predicate: the
// caller must match the token subject and the token must carry the role the
// action requires.
func (c *CapabilityClaims) Predicate() Predicate {
	return func(caller ids.Address, action Action) bool {
		if c.Subject != caller.String() {
			return false
		}
		role := ""
		switch action {
		case ActionEndorse:
			role = "endorser"
		case ActionSetMetadata:
			role = "admin"
		default:
			return false
		}
		for _, r := range c.Roles {
			if r == role {
				return true
			}
		}
		return false
	}
}

// MintToken issues a capability token for an identity. Exposed for the dev
// tools and tests; production tokens come from the operator's issuer.
func MintToken(secret []byte, subject ids.Address, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CapabilityClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
