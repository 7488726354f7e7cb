package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const testToken = "correct-horse-battery-staple"

func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash token: %v", err)
	}
	return string(hash)
}

func TestNewTokenVerifierDisabled(t *testing.T) {
	v, err := NewTokenVerifier("  ")
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}
	if v.Enabled() {
		t.Error("Expected verifier without hash to be disabled")
	}
	if err := v.Verify(""); err != nil {
		t.Errorf("Disabled verifier should accept anything, got %v", err)
	}
}

func TestNewTokenVerifierInvalidHash(t *testing.T) {
	if _, err := NewTokenVerifier("not-a-bcrypt-hash"); err == nil {
		t.Error("Expected error for invalid hash")
	}
}

func TestVerify(t *testing.T) {
	v, err := NewTokenVerifier(testHash(t))
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"correct token", testToken, false},
		{"wrong token", "wrong-token-value-here", true},
		{"empty token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifyRequest(t *testing.T) {
	v, err := NewTokenVerifier(testHash(t))
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}

	query := httptest.NewRequest("GET", "/socket?token="+testToken, nil)
	if err := v.VerifyRequest(query); err != nil {
		t.Errorf("Expected query token to verify, got %v", err)
	}

	header := httptest.NewRequest("GET", "/socket", nil)
	header.Header.Set("Authorization", "Bearer "+testToken)
	if err := v.VerifyRequest(header); err != nil {
		t.Errorf("Expected bearer token to verify, got %v", err)
	}

	missing := httptest.NewRequest("GET", "/socket", nil)
	if err := v.VerifyRequest(missing); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken without token, got %v", err)
	}
}

func TestNilVerifier(t *testing.T) {
	var v *TokenVerifier
	if v.Enabled() {
		t.Error("Nil verifier should be disabled")
	}
	if err := v.VerifyRequest(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Errorf("Nil verifier should accept requests, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	if _, err := HashToken("short"); err == nil {
		t.Error("Expected error for short token")
	}

	hash, err := HashToken(testToken)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	v, err := NewTokenVerifier(hash)
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}
	if err := v.Verify(testToken); err != nil {
		t.Errorf("Expected hashed token to verify, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	v, err := NewTokenVerifier(testHash(t))
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}

	called := 0
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called++
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/encoder/restart", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
	if called != 0 {
		t.Error("Handler should not run without a token")
	}

	req := httptest.NewRequest("POST", "/api/encoder/restart", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted || called != 1 {
		t.Errorf("Expected handler to run with token, got %d (called %d)", w.Code, called)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	v, _ := NewTokenVerifier("")
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/sessions", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected pass-through when disabled, got %d", w.Code)
	}
}
