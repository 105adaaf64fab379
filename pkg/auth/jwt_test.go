package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, expiresAt, err := GenerateAccessToken("U1", "u1@example.com", "secret", "agent-console", time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("expiresAt = %v, want future", expiresAt)
	}

	claims, err := ParseToken(token, "secret", "agent-console")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != "U1" {
		t.Errorf("claims.UserID = %q, want U1", claims.UserID)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	good, _, err := GenerateAccessToken("U1", "", "secret", "agent-console", time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	defaulted, _, err := GenerateAccessToken("U1", "", "secret", "agent-console", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
		issuer string
	}{
		{name: "wrong secret", token: good, secret: "other", issuer: "agent-console"},
		{name: "wrong issuer", token: good, secret: "secret", issuer: "someone-else"},
		{name: "garbage", token: "not-a-jwt", secret: "secret", issuer: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret, tt.issuer)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}

	// Non-positive ttl falls back to the default lifetime.
	if _, err := ParseToken(defaulted, "secret", "agent-console"); err != nil {
		t.Errorf("ParseToken() with default ttl error = %v", err)
	}
}

func TestGenerateAccessToken_RequiresUser(t *testing.T) {
	if _, _, err := GenerateAccessToken("", "", "secret", "", time.Minute); err == nil {
		t.Error("GenerateAccessToken() expected error for empty user id")
	}
}
