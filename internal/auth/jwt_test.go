package auth

import (
	"testing"
	"time"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "shipnotify", time.Hour)

	token, err := m.GenerateToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID())
	}
	if claims.Email != "a@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.ID == "" {
		t.Error("expected a session id")
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", "shipnotify", time.Hour)
	token, err := m.GenerateToken("user-1", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name    string
		manager *JWTManager
		token   string
	}{
		{"wrong secret", NewJWTManager("other", "shipnotify", time.Hour), token},
		{"wrong issuer", NewJWTManager("secret", "elsewhere", time.Hour), token},
		{"garbage", m, "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.ValidateToken(tt.token); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", "", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateToken("user-1", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	m.now = time.Now
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTManager_RequiresUser(t *testing.T) {
	m := NewJWTManager("secret", "", 0)
	if _, err := m.GenerateToken("", ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
