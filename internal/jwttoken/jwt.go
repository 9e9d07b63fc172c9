// Package jwttoken validates the HS256 bearer tokens the surrounding system
// issues to supervisors. The engine only needs the subject for attribution;
// session handling lives outside this service.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "patrol/pkg/domain-errors"
)

// Service validates access tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

// New returns a token service. An empty signing key disables validation;
// callers should then skip the identity middleware entirely.
func New(signingKey, issuer string) *Service {
	if signingKey == "" {
		return nil
	}
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// ValidateToken checks signature, expiry, and issuer, and returns the subject.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", dErrors.New(dErrors.CodeInvalidInput, "token expired")
		default:
			return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid token")
		}
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid token claims")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unexpected token issuer")
	}
	if claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token missing subject")
	}
	return claims.Subject, nil
}

// GenerateToken mints a token for tooling and tests.
func (s *Service) GenerateToken(subject string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	})
	return token.SignedString(s.signingKey)
}
