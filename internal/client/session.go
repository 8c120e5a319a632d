package client

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAuthenticated is returned for calls made with a nil or cleared session.
var ErrNotAuthenticated = errors.New("not authenticated; run login first")

// TokenClaims is the identity carried by an access token, decoded without
// verifying the signature. Only the server can vouch for it.
type TokenClaims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the token expiry has passed at now.
func (c *TokenClaims) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseToken decodes the claims of a JWT without verifying it. A malformed
// token yields nil.
func ParseToken(token string) *TokenClaims {
	if token == "" {
		return nil
	}
	var claims struct {
		Email string `json:"email"`
		jwt.RegisteredClaims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	out := &TokenClaims{UserID: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out
}

// Session holds the credentials for one operator. It is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	token  string
	claims *TokenClaims
}

// NewSession wraps an access token.
func NewSession(token string) *Session {
	s := &Session{}
	s.set(token)
	return s
}

func (s *Session) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = ParseToken(token)
}

// Token returns the bearer token, or "" once cleared.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims returns the decoded token claims, or nil when the token is absent or malformed.
func (s *Session) Claims() *TokenClaims {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return nil
	}
	c := *s.claims
	return &c
}

// Authenticated reports whether the session still holds a token.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Clear drops the token and claims. Later calls with the session fail with ErrNotAuthenticated.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.claims = nil
}

func (s *Session) authorize(req *http.Request) error {
	token := s.Token()
	if token == "" {
		return ErrNotAuthenticated
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
