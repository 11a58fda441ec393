// Package authn issues and validates JWTs, verifies passwords, and
// tracks server-side session invalidation for the HTTP surface's
// /login and /logout endpoints (spec.md §6.1, Open Question 2).
package authn

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// User is the minimal account record authn needs from a UserStore.
type User struct {
	Username     string
	PasswordHash string
}

// UserStore looks up an account by username. Implementations own
// their own storage; this package never assumes a schema.
type UserStore interface {
	FindByUsername(username string) (*User, error)
}

// ErrUserNotFound is returned by UserStore implementations when no
// account matches the given username.
var ErrUserNotFound = errors.New("authn: user not found")

// Claims is the JWT payload issued on successful login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates JWTs against a configured
// issuer/audience/secret and verifies passwords via bcrypt.
type Authenticator struct {
	cfg   config.JWTConfig
	store UserStore
}

// New builds an Authenticator against a user store and the
// security.jwt settings loaded from the configuration file.
func New(cfg config.JWTConfig, store UserStore) *Authenticator {
	return &Authenticator{cfg: cfg, store: store}
}

// Login verifies username/password via bcrypt and issues a signed JWT
// valid for cfg.ExpirationHours.
func (a *Authenticator) Login(username, password string) (string, error) {
	user, err := a.store.FindByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", gwerrors.Unauthorized("invalid username or password")
		}
		return "", gwerrors.CommandError(err, "looking up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", gwerrors.Unauthorized("invalid username or password")
	}

	now := time.Now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Audience:  jwt.ClaimStrings{a.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(a.cfg.ExpirationHours) * time.Hour)),
			ID:        newSessionID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return "", gwerrors.CommandError(err, "signing token")
	}
	return signed, nil
}

// Verify parses and validates a bearer token's signature, issuer,
// audience, and expiry, and checks it hasn't been logged out.
func (a *Authenticator) Verify(tokenString string, sessions *SessionRegistry) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.cfg.Secret), nil
	}, jwt.WithIssuer(a.cfg.Issuer), jwt.WithAudience(a.cfg.Audience))
	if err != nil || !token.Valid {
		return nil, gwerrors.Unauthorized("invalid or expired token")
	}
	if sessions != nil && sessions.IsInvalidated(claims.ID) {
		return nil, gwerrors.Unauthorized("session has been logged out")
	}
	return claims, nil
}

// newSessionID is the registered claim ID used for logout tracking.
// Grounded on the teacher's nonce generation: a hex-encoded
// random value, not a sequential counter.
func newSessionID() string {
	return randomHex(16)
}
