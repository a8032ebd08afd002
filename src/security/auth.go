package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminIssuer   = "reconciler"
	adminAudience = "reconciler-admin"
	minSecretLen  = 32
)

var (
	ErrAuthDisabled = errors.New("admin authentication disabled: no secret configured")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// AuthService issues and validates the HS256 bearer tokens of the admin endpoints.
type AuthService struct {
	secret []byte
}

// NewAuthService creates an AuthService. A secret shorter than 32 bytes disables it.
func NewAuthService(secret string) *AuthService {
	if len(secret) < minSecretLen {
		return &AuthService{}
	}
	return &AuthService{secret: []byte(secret)}
}

// Enabled reports whether tokens can be issued and validated.
func (s *AuthService) Enabled() bool {
	return len(s.secret) > 0
}

// GenerateToken issues an admin token for subject, valid for ttl.
func (s *AuthService) GenerateToken(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    adminIssuer,
		Audience:  jwt.ClaimStrings{adminAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken returns the subject of a valid admin token.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(adminIssuer),
		jwt.WithAudience(adminAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}
