// Handshake authentication: verifies the HS256 session tokens the gateway
// itself issues, using golang-jwt/jwt/v5.
package wsrouter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned when neither an Authorization header nor a
// token query parameter is present on the upgrade request.
var ErrMissingToken = errors.New("wsrouter: missing handshake token")

// ErrInvalidToken is returned for a malformed, unsigned-as-expected, or
// expired handshake token.
var ErrInvalidToken = errors.New("wsrouter: invalid handshake token")

// handshakeClaims is the JWT payload the gateway expects: sub carries the
// authenticated user id, key_id the API key that extension instance was
// issued.
type handshakeClaims struct {
	jwt.RegisteredClaims
	KeyID string `json:"key_id"`
}

// Authenticator verifies the handshake token presented when a browser
// extension opens the proxy WebSocket.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator builds an Authenticator around an HS256 secret (the
// jwt_secret_key setting, GATEWAY_JWT_SECRET_KEY in the environment).
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Identity is what a verified handshake resolves to.
type Identity struct {
	UserID string
	KeyID  string
}

// Authenticate extracts and verifies the handshake token from r, accepting
// either an "Authorization: Bearer <token>" header or a "token" query
// parameter (browser WebSocket clients can't set arbitrary headers during
// the upgrade).
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := bearerFromHeader(r.Header.Get("Authorization"))
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	var claims handshakeClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.Subject, KeyID: claims.KeyID}, nil
}

func bearerFromHeader(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}
