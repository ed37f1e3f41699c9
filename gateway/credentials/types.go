// Package credentials implements the Credential & Session Registry: per-API-
// key CSRF token, cookie jar, and Gemini credential blob, with the
// exactly-one-active-key-per-instance invariant and a quote-stripping
// cookie ingest rule.
package credentials

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// APIKey is one issued credential record. The plaintext secret is never
// stored; only KeyHash and KeyPrefix survive generation.
type APIKey struct {
	KeyID         uuid.UUID
	OwnerUserID   uuid.UUID
	InstanceID    string
	InstanceName  string
	BrowserInfo   string
	KeyPrefix     string
	KeyHash       string
	Active        bool
	CreatedAt     time.Time
	LastUsedAt    *time.Time
	RevokedAt     *time.Time
	CSRFToken     string
	Cookies       map[string]string
	GeminiBlob    json.RawMessage
}

// Credentials is the projection get_credentials returns: just what the
// Direct HTTP Client needs to talk to LinkedIn.
type Credentials struct {
	CSRFToken string
	Cookies   map[string]string
	Gemini    json.RawMessage
}

var (
	// ErrNoActiveKey reports that a user has no active API key. No Registry
	// or Store method in this package returns it; GetCredentials reports an
	// unknown key id with ErrKeyNotFound.
	ErrNoActiveKey = errors.New("credentials: no active key for user")

	// ErrUnauthorized is returned by authenticate when the presented key
	// doesn't hash to any stored key, or hashes to a revoked one.
	ErrUnauthorized = errors.New("credentials: unauthorized")

	// ErrKeyNotFound is returned by Store lookups (FindByID, FindByHash,
	// GetActiveByUser) that match no key. Deleting an unknown key id is not
	// an error.
	ErrKeyNotFound = errors.New("credentials: key not found")
)

// stripQuotes removes one surrounding pair of double quotes from v, if
// present. LinkedIn's JSESSIONID cookie arrives quoted; this is applied on
// every cookie value at ingest.
func stripQuotes(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func stripQuotesFromMap(cookies map[string]string) map[string]string {
	out := make(map[string]string, len(cookies))
	for k, v := range cookies {
		out[k] = stripQuotes(v)
	}
	return out
}
