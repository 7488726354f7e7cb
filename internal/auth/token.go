package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned when a presented token does not match.
var ErrInvalidToken = errors.New("invalid ingest token")

// MinTokenLength is the shortest token HashToken accepts.
const MinTokenLength = 16

// TokenVerifier checks ingest tokens against a bcrypt hash. A verifier with
// no hash accepts every request.
type TokenVerifier struct {
	hash []byte
}

// NewTokenVerifier creates a verifier for hash. An empty hash disables
// verification.
func NewTokenVerifier(hash string) (*TokenVerifier, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &TokenVerifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid token hash: %w", err)
	}
	return &TokenVerifier{hash: []byte(hash)}, nil
}

// Enabled reports whether a token is required.
func (v *TokenVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify checks token against the configured hash.
func (v *TokenVerifier) Verify(token string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// VerifyRequest extracts the token from the "token" query parameter or a
// bearer Authorization header and verifies it. Browsers cannot set headers
// on a WebSocket handshake, hence the query parameter.
func (v *TokenVerifier) VerifyRequest(r *http.Request) error {
	if !v.Enabled() {
		return nil
	}
	return v.Verify(TokenFromRequest(r))
}

// Middleware rejects requests without a valid token with 401. It passes
// everything through when verification is disabled.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.VerifyRequest(r); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="stream-relay"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest returns the token carried by r, if any.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// HashToken returns the bcrypt hash of token for INGEST_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if len(token) < MinTokenLength {
		return "", fmt.Errorf("token must be at least %d characters", MinTokenLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}
