// Package auth implements the identity gate that authenticates WebSocket
// handshakes before a connection reaches the gateway.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Tyrowin/gochat/internal/gateway"
)

var (
	// ErrUnauthorized is returned when a handshake carries no usable credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Config holds the token verification settings.
type Config struct {
	SecretKey string
	Issuer    string
}

// Claims carries the identity attached to a connection.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// JWTGate verifies HS256 bearer tokens and turns them into identities.
type JWTGate struct {
	config Config
}

// NewJWTGate creates a gate for the given configuration.
func NewJWTGate(config Config) *JWTGate {
	return &JWTGate{config: config}
}

// Issue signs a token for identity valid for ttl. It is used by tooling and
// tests; production tokens come from the login service.
func (g *JWTGate) Issue(identity gateway.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Avatar:   identity.AvatarRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(g.config.SecretKey))
}

// Authenticate validates tokenString and returns the identity it carries.
func (g *JWTGate) Authenticate(tokenString string) (gateway.Identity, error) {
	if tokenString == "" {
		return gateway.Identity{}, ErrUnauthorized
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if g.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(g.config.SecretKey), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return gateway.Identity{}, ErrExpiredToken
		}
		return gateway.Identity{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.Username == "" {
		return gateway.Identity{}, ErrUnauthorized
	}

	return gateway.Identity{
		UserID:    claims.UserID,
		Username:  claims.Username,
		AvatarRef: claims.Avatar,
	}, nil
}

// AuthenticateRequest extracts the token from the handshake request, either
// the "token" query parameter or an Authorization bearer header, and
// authenticates it.
func (g *JWTGate) AuthenticateRequest(r *http.Request) (gateway.Identity, error) {
	return g.Authenticate(TokenFromRequest(r))
}

// TokenFromRequest returns the handshake token carried by r, if any.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
