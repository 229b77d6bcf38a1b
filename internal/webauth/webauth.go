// Package webauth issues and validates admin/control-plane session tokens.
// It is a distinct concern from internal/credential: that package translates
// a developer's ic_ credential into upstream provider access, while this
// package authenticates a human operator against the admin HTTP surface.
// The email-challenge flow is kept from the login idiom this codebase
// already used elsewhere; the session token itself is now a JWT signed with
// JWT_SECRET instead of a hand-rolled HMAC payload, so standard claim
// validation (expiry, issuer, not-before) comes from the jwt library rather
// than being reimplemented here.
package webauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "budgetcore-admin"

// ErrChallengeNotFound indicates the challenge id is unknown or has expired.
var ErrChallengeNotFound = errors.New("webauth: challenge not found or expired")

// ErrInvalidCode indicates the supplied verification code did not match.
var ErrInvalidCode = errors.New("webauth: invalid verification code")

// ErrInvalidSession indicates a session token failed signature or claim
// validation; there is no partial-trust fallback.
var ErrInvalidSession = errors.New("webauth: invalid session token")

// Manager issues email challenges and JWT session tokens for the admin
// surface. The zero value is not usable; build one with New.
type Manager struct {
	signingKey []byte
	ttl        time.Duration

	mu         sync.Mutex
	challenges map[string]challenge
}

type challenge struct {
	email   string
	code    string
	expires time.Time
}

// New builds a Manager. secret is JWT_SECRET; it must be non-empty, which
// internal/bootguard already enforces in production.
func New(secret string, sessionTTL time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("webauth: secret must not be empty")
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Manager{
		signingKey: []byte(secret),
		ttl:        sessionTTL,
		challenges: make(map[string]challenge),
	}, nil
}

// CreateChallenge registers a verification code for email and returns the
// challenge id to hand back to the caller alongside the (out-of-band
// delivered) code.
func (m *Manager) CreateChallenge(email string) (challengeID, code string, expires time.Time, err error) {
	if email == "" {
		return "", "", time.Time{}, fmt.Errorf("webauth: %w", errors.New("email required"))
	}
	id, err := randomID()
	if err != nil {
		return "", "", time.Time{}, err
	}
	code, err = randomCode()
	if err != nil {
		return "", "", time.Time{}, err
	}
	expires = time.Now().Add(10 * time.Minute)

	m.mu.Lock()
	m.challenges[id] = challenge{email: email, code: code, expires: expires}
	m.mu.Unlock()
	return id, code, expires, nil
}

// VerifyChallenge consumes the challenge (one-time use) and returns the
// email it was issued for.
func (m *Manager) VerifyChallenge(challengeID, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[challengeID]
	if ok && time.Now().After(c.expires) {
		ok = false
		delete(m.challenges, challengeID)
	}
	if !ok {
		return "", ErrChallengeNotFound
	}
	if c.code != code {
		return "", ErrInvalidCode
	}
	delete(m.challenges, challengeID)
	return c.email, nil
}

// sessionClaims embeds jwt.RegisteredClaims so exp/iat/iss are validated by
// the library instead of by hand.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// IssueSession signs a session token for email, valid for the Manager's
// configured TTL.
func (m *Manager) IssueSession(email string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// ValidateSession parses and verifies a session token, returning the email
// it was issued for.
func (m *Manager) ValidateSession(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("webauth: unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.Email == "" {
		return "", ErrInvalidSession
	}
	return claims.Email, nil
}

func randomID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomCode() (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	value := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	return fmt.Sprintf("%06d", value%1000000), nil
}
