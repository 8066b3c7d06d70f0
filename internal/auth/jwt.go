// Package auth issues and checks the admin tokens that guard maintenance
// endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"

	defaultTokenTTL = time.Hour
	issuer          = "fixit"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrNotAdmin        = errors.New("token does not carry the admin role")
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates admin tokens
type Issuer struct {
	adminKey string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer. A non-positive ttl uses one hour.
func NewIssuer(adminKey, secret string, ttl time.Duration) (*Issuer, error) {
	if adminKey == "" {
		return nil, fmt.Errorf("admin key is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Issuer{adminKey: adminKey, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// CheckAdminKey compares key against the configured admin key in constant time
func (i *Issuer) CheckAdminKey(key string) bool {
	return subtle.ConstantTimeCompare([]byte(key), []byte(i.adminKey)) == 1
}

// GenerateAdminToken exchanges the admin key for a signed admin token
func (i *Issuer) GenerateAdminToken(adminKey string) (string, time.Time, error) {
	if !i.CheckAdminKey(adminKey) {
		return "", time.Time{}, ErrInvalidAdminKey
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &JWTClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   RoleAdmin,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}

// ValidateAdminToken validates the token and requires the admin role
func (i *Issuer) ValidateAdminToken(tokenString string) (*JWTClaims, error) {
	claims, err := i.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}
