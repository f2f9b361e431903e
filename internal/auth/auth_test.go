package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken("admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	userID, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if userID != "admin" {
		t.Errorf("expected user ID admin, got %q", userID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("admin", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := ValidateToken(token, "secret-b"); err == nil {
		t.Error("expected validation to fail with the wrong secret")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	token, err := GenerateToken("admin", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Error("expected validation to fail for an expired token")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !CheckPassword("s3cret", hash) {
		t.Error("expected matching password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Error("expected wrong password to fail verification")
	}
}

func TestVerifyPasswordPrefersHash(t *testing.T) {
	hash, err := HashPassword("hashed-pw")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	cfg := Config{AdminPasswordHash: hash, AdminPassword: "plain-pw"}
	if !cfg.VerifyPassword("hashed-pw") {
		t.Error("expected hash credential to verify")
	}
	if cfg.VerifyPassword("plain-pw") {
		t.Error("expected plaintext fallback to be ignored when a hash is set")
	}

	cfg = Config{AdminPassword: "plain-pw"}
	if !cfg.VerifyPassword("plain-pw") {
		t.Error("expected plaintext credential to verify without a hash")
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := Config{JWTSecret: "mw-secret", TokenDuration: time.Hour}
	middleware := AuthMiddleware(cfg)

	var gotUserID string
	protected := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No Authorization header.
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}

	// Malformed header.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a malformed header, got %d", rec.Code)
	}

	// Valid token.
	token, err := GenerateToken("admin", cfg.JWTSecret, cfg.TokenDuration)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a valid token, got %d", rec.Code)
	}
	if gotUserID != "admin" {
		t.Errorf("expected user ID in context, got %q", gotUserID)
	}
}
