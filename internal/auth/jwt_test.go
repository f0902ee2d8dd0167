package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

const testSecret = "test-secret-at-least-32-chars-long-for-security"

func testIdentity(role string) Identity {
	return Identity{ActorID: uuid.New(), TenantID: uuid.New(), Role: role}
}

func TestJWTManager_GenerateAndValidate_Success(t *testing.T) {
	manager := NewJWTManager(testSecret, "qms-test", 15*time.Minute)
	id := testIdentity(RoleUser)

	token, err := manager.GenerateAccessToken(id)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if got != id {
		t.Errorf("identity: got %+v, want %+v", got, id)
	}
	if got.IsAdmin() {
		t.Error("user role should not be admin")
	}
}

func TestJWTManager_GenerateAndValidate_AdminRole(t *testing.T) {
	manager := NewJWTManager(testSecret, "qms-test", 15*time.Minute)

	token, err := manager.GenerateAccessToken(testIdentity(RoleAdmin))
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	got, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if !got.IsAdmin() {
		t.Errorf("expected admin, got role %q", got.Role)
	}
}

func TestJWTManager_ValidateAccessToken_Rejected(t *testing.T) {
	manager := NewJWTManager(testSecret, "qms-test", 15*time.Minute)
	expired := NewJWTManager(testSecret, "qms-test", -time.Hour)
	otherSecret := NewJWTManager("different-secret-32-chars-long-for-security!!", "qms-test", 15*time.Minute)
	otherIssuer := NewJWTManager(testSecret, "wrong-issuer", 15*time.Minute)

	sign := func(m *JWTManager) string {
		token, err := m.GenerateAccessToken(testIdentity(RoleUser))
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}
		return token
	}

	noOrg, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "qms-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"empty", "", "empty"},
		{"expired", sign(expired), "parse token"},
		{"invalid signature", sign(otherSecret), "parse token"},
		{"wrong issuer", sign(otherIssuer), "parse token"},
		{"malformed", "not.a.jwt", "parse token"},
		{"missing signature", "header.payload", "parse token"},
		{"missing org", noOrg, "invalid org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.ValidateAccessToken(tt.token)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in error, got: %v", tt.wantMsg, err)
			}
		})
	}
}
