package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
)

func testManager() *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
}

func testUser() *models.User {
	return &models.User{
		ID:      uuid.New(),
		Email:   "operator@example.com",
		IsAdmin: true,
	}
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	m := testManager()
	user := testUser()

	access, refresh, err := m.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty tokens")
	}

	claims, err := m.ValidateToken(access)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("UserID = %v, want %v", claims.UserID, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("Email = %q, want %q", claims.Email, user.Email)
	}
	if !claims.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
}

func TestRefreshTokenReturnsUserID(t *testing.T) {
	m := testManager()
	user := testUser()

	_, refresh, err := m.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	userID, err := m.RefreshToken(refresh)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if userID != user.ID {
		t.Errorf("RefreshToken user id = %v, want %v", userID, user.ID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	m := testManager()
	user := testUser()

	access, _, err := m.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	other := NewJWTManager(&config.JWTConfig{
		Secret:          "different-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	if _, err := other.ValidateToken(access); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  -time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	access, _, err := m.GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := m.ValidateToken(access); err == nil {
		t.Fatal("expected validation to fail for an expired token")
	}
}

func TestRefreshTokenGarbage(t *testing.T) {
	m := testManager()

	if _, err := m.RefreshToken("not-a-token"); err == nil {
		t.Fatal("expected error for malformed refresh token")
	}
}
