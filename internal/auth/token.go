// Package auth issues and validates the bearer tokens that carry caller
// principals. The principal is opaque to domain logic; this package is the
// only place that understands the token format.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
)

// Claims represents the JWT claims for access tokens.
type Claims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// TokenService handles token creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey string, issuer string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateToken mints a token for the given principal.
func (s *TokenService) GenerateToken(principal id.PrincipalID, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Principal: principal.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies the signature and expiry and returns the principal.
func (s *TokenService) ValidateToken(tokenString string) (id.PrincipalID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Principal == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return id.PrincipalID(claims.Principal), nil
}
