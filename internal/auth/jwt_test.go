package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := IssueAccessToken(secret, 7, RoleWaiter, "waiter@vortice.test", "Lucia", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := VerifyAccessToken(token, secret)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != 7 {
		t.Fatalf("expected user 7, got %d", claims.UserID)
	}
	if claims.Role != RoleWaiter {
		t.Fatalf("expected waiter role, got %s", claims.Role)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueAccessToken("secret-a", 1, RoleAdmin, "admin@vortice.test", "Ana", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := VerifyAccessToken(token, "secret-b"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	token, err := IssueAccessToken("secret", 1, RoleAdmin, "admin@vortice.test", "Ana", -time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := VerifyAccessToken(token, "secret"); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		expected string
	}{
		{"well formed", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer xyz", "xyz"},
		{"missing scheme", "abc.def.ghi", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseBearerToken(tc.header); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatal("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Fatal("expected mismatch to fail")
	}
}
