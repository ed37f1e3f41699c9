package wsrouter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims handshakeClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthenticateMissingToken(t *testing.T) {
	a := NewAuthenticator("shh")
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if _, err := a.Authenticate(req); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestAuthenticateHeaderToken(t *testing.T) {
	a := NewAuthenticator("shh")
	claims := handshakeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		KeyID: "key-abc",
	}
	token := signToken(t, "shh", claims)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != "user-123" || id.KeyID != "key-abc" {
		t.Errorf("got %+v", id)
	}
}

func TestAuthenticateQueryToken(t *testing.T) {
	a := NewAuthenticator("shh")
	claims := handshakeClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-xyz"},
		KeyID:            "key-1",
	}
	token := signToken(t, "shh", claims)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	id, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != "user-xyz" {
		t.Errorf("got %+v", id)
	}
}

func TestAuthenticateWrongSecretRejected(t *testing.T) {
	claims := handshakeClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token := signToken(t, "secret-a", claims)

	a := NewAuthenticator("secret-b")
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	if _, err := a.Authenticate(req); err == nil {
		t.Fatalf("expected signature verification to fail")
	}
}

func TestAuthenticateExpiredTokenRejected(t *testing.T) {
	claims := handshakeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := signToken(t, "shh", claims)

	a := NewAuthenticator("shh")
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	if _, err := a.Authenticate(req); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestAuthenticateMissingSubjectRejected(t *testing.T) {
	claims := handshakeClaims{KeyID: "key-1"}
	token := signToken(t, "shh", claims)

	a := NewAuthenticator("shh")
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	if _, err := a.Authenticate(req); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for missing subject, got %v", err)
	}
}
