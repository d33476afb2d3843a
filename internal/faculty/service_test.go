package faculty

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/auth"
)

type fakeCreds struct {
	hashes map[string]string
	err    error
}

func (f *fakeCreds) PasswordHash(ctx context.Context, username string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	hash, ok := f.hashes[username]
	return hash, ok, nil
}

func credsFor(t *testing.T, username, password string) *fakeCreds {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &fakeCreds{hashes: map[string]string{username: string(hash)}}
}

func TestLoginSuccess(t *testing.T) {
	svc := NewService(credsFor(t, "prof.rao", "s3cret"), "rollcall", "test-key", time.Hour, nil)

	token, err := svc.Login(context.Background(), "  prof.rao  ", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := auth.Parse(token, "test-key", "rollcall")
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Username != "prof.rao" {
		t.Fatalf("expected username prof.rao, got %q", claims.Username)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewService(credsFor(t, "prof.rao", "s3cret"), "rollcall", "test-key", time.Hour, nil)
	if _, err := svc.Login(context.Background(), "prof.rao", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewService(&fakeCreds{hashes: map[string]string{}}, "rollcall", "test-key", time.Hour, nil)
	if _, err := svc.Login(context.Background(), "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginBlankInput(t *testing.T) {
	svc := NewService(credsFor(t, "prof.rao", "s3cret"), "rollcall", "test-key", time.Hour, nil)
	if _, err := svc.Login(context.Background(), "   ", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for blank username, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "prof.rao", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for blank password, got %v", err)
	}
}

func TestLoginStoreFailure(t *testing.T) {
	svc := NewService(&fakeCreds{err: errors.New("connection refused")}, "rollcall", "test-key", time.Hour, nil)
	_, err := svc.Login(context.Background(), "prof.rao", "s3cret")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected store error to pass through, got %v", err)
	}
}
