// Package identity resolves the calling user from a request so writes
// and observer feeds stay scoped to the caller's own records.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/example/trip-sync/internal/models"
)

var ErrNoIdentity = errors.New("no identity")

// Claims carried in the bearer token.
type Claims struct {
	UserID string      `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Provider resolves the current user from an incoming request.
type Provider interface {
	CurrentUser(r *http.Request) (Claims, error)
}

// JWTProvider validates HMAC-signed bearer tokens.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) CurrentUser(r *http.Request) (Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Claims{}, ErrNoIdentity
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Claims{}, fmt.Errorf("%w: malformed authorization header", ErrNoIdentity)
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: token without user id", ErrNoIdentity)
	}
	return *claims, nil
}

// Token mints a signed token for the given user, used by tests and local
// tooling.
func (p *JWTProvider) Token(userID, name string, role models.Role) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: userID, Name: name, Role: role})
	return t.SignedString(p.secret)
}
