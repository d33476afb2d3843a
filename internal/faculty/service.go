package faculty

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/auth"
)

// ErrInvalidCredentials covers unknown usernames and wrong passwords alike;
// callers get no signal about which one failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialStore looks up stored bcrypt hashes for faculty accounts.
type CredentialStore interface {
	PasswordHash(ctx context.Context, username string) (hash string, found bool, err error)
}

// Service authenticates faculty and issues bearer tokens.
type Service struct {
	creds  CredentialStore
	issuer string
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates the auth service; now defaults to time.Now.
func NewService(creds CredentialStore, issuer, key string, ttl time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{creds: creds, issuer: issuer, key: key, ttl: ttl, now: now}
}

// Login verifies the password against the stored hash and returns a signed
// token on success.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	hash, found, err := s.creds.PasswordHash(ctx, username)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return auth.Issue(username, s.issuer, s.key, s.ttl, s.now())
}
