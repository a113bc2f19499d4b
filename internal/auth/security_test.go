package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testKey    = "fedcba9876543210fedcba9876543210"
)

func newTestService(t *testing.T, expiry time.Duration) *Service {
	t.Helper()
	s, err := NewService(testSecret, testKey, "admin", "s3cret-pass", expiry)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s
}

func TestNewServiceValidation(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		key     string
		wantErr bool
	}{
		{"both set", testSecret, testKey, false},
		{"both empty", "", "", false},
		{"short secret", "short", testKey, true},
		{"short key", testSecret, "short", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.secret, tt.key, "admin", "pw", time.Hour)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewService() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginAndValidate(t *testing.T) {
	s := newTestService(t, time.Hour)

	resp, err := s.Login("admin", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token == "" || resp.ExpiresAt.Before(time.Now()) {
		t.Errorf("Login() = %+v", resp)
	}

	claims, err := s.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("username = %q, want admin", claims.Username)
	}

	if _, err := s.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong) error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService(t, time.Hour)
	resp, err := s.Login("admin", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	other, err := NewService(strings.Repeat("z", 32), "", "admin", "s3cret-pass", time.Hour)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := other.ValidateToken(resp.Token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}

	expired := newTestService(t, -time.Minute)
	old, err := expired.Login("admin", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := s.ValidateToken(old.Token); err == nil {
		t.Error("expired token should be rejected")
	}

	if _, err := s.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token should be rejected")
	}
}

func TestTokensDisabled(t *testing.T) {
	s, err := NewService("", testKey, "admin", "pw", time.Hour)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := s.Login("admin", "pw"); !errors.Is(err, ErrTokensDisabled) {
		t.Errorf("Login() error = %v, want %v", err, ErrTokensDisabled)
	}
}

func TestReveal(t *testing.T) {
	s := newTestService(t, time.Hour)

	sealed, err := s.Seal("public-community")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !strings.HasPrefix(sealed, SecretPrefix) || strings.Contains(sealed, "public-community") {
		t.Fatalf("Seal() = %q", sealed)
	}

	got, err := s.Reveal(sealed)
	if err != nil || got != "public-community" {
		t.Errorf("Reveal(sealed) = %q, %v", got, err)
	}

	got, err = s.Reveal("plain-value")
	if err != nil || got != "plain-value" {
		t.Errorf("Reveal(plain) = %q, %v", got, err)
	}

	if _, err := s.Reveal(SecretPrefix + "!!!"); err == nil {
		t.Error("Reveal() of corrupt ciphertext should fail")
	}

	noKey, _ := NewService("", "", "", "", 0)
	if _, err := noKey.Reveal(sealed); !errors.Is(err, ErrNoEncryptionKey) {
		t.Errorf("Reveal() without key error = %v, want %v", err, ErrNoEncryptionKey)
	}
}
