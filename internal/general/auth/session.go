// Package auth holds the agent's view of the driver's credentials. Tokens
// are issued and verified by the platform backend; the console only reads
// the claims it needs (subject, role) and forwards the raw bearer token on
// every authenticated call.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken    = errors.New("bearer token missing")
	ErrNotDriver     = errors.New("token does not carry the DRIVER role")
	ErrNoSubject     = errors.New("token has no subject claim")
	ErrMalformedJWT  = errors.New("malformed bearer token")
	ErrTokenRequired = errors.New("token source returned no token")
)

// Claims is the claims payload the platform puts in access tokens.
type Claims struct {
	Role string `json:"role"` // PASSENGER | DRIVER | ADMIN
	jwtlib.RegisteredClaims
}

// TokenSource yields the current bearer token. Implementations must be
// safe for concurrent use; the gateway reads on every call.
type TokenSource interface {
	Token() (string, error)
}

// Session identifies the driver the console acts for.
type Session struct {
	DriverID string
	Role     string

	source TokenSource
}

// NewSession decodes the token's claims and pins the session identity.
// The signature is NOT verified here: the agent has no signing secret and
// the backend re-verifies every request. Decoding only extracts identity
// for event filtering and logging.
func NewSession(source TokenSource) (*Session, error) {
	tok, err := source.Token()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tok) == "" {
		return nil, ErrTokenRequired
	}

	claims := &Claims{}
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(tok, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJWT, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSubject
	}
	role := strings.ToUpper(strings.TrimSpace(claims.Role))
	if role != "DRIVER" {
		return nil, ErrNotDriver
	}

	return &Session{
		DriverID: claims.Subject,
		Role:     role,
		source:   source,
	}, nil
}

// Token returns the current bearer token for outbound calls.
func (s *Session) Token() (string, error) {
	tok, err := s.source.Token()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tok) == "" {
		return "", ErrEmptyToken
	}
	return tok, nil
}

// ----- Token sources -----

// FileTokenSource re-reads the token file on every call so an external
// refresher can rotate the credential without restarting the agent.
type FileTokenSource struct {
	Path string

	mu     sync.Mutex
	cached string
}

func (f *FileTokenSource) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		// fall back to the last good read; a refresher mid-rotation may
		// briefly leave the file missing
		if f.cached != "" {
			return f.cached, nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(raw))
	if tok != "" {
		f.cached = tok
	}
	return tok, nil
}

// StaticTokenSource returns a fixed token (tests, one-shot runs).
type StaticTokenSource string

func (s StaticTokenSource) Token() (string, error) {
	return string(s), nil
}
