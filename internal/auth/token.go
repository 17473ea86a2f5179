package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by a session token. Subject is the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Token is a signed session token and the metadata needed to revoke it.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs and verifies HMAC session tokens.
type Issuer struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer. An empty audience is neither set nor checked.
func NewIssuer(secret, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:   []byte(strings.TrimSpace(secret)),
		audience: strings.TrimSpace(audience),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the given user.
func (i *Issuer) Issue(subject, username string) (*Token, error) {
	if len(i.secret) == 0 {
		return nil, errors.New("missing JWT secret")
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, err
	}
	return &Token{Value: signed, ID: claims.ID, ExpiresAt: expires}, nil
}

// Parse verifies tokenString and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	if len(i.secret) == 0 {
		return nil, errors.New("missing JWT secret")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(i.now)}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}
