// Read-through cache in front of get_credentials, built on pantry/cache's
// Cache interface and its Redis implementation. Caching here exists to take
// load off Postgres on the hot path (the REST surface reads credentials on
// every request); it is never the system of record.
package credentials

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/pantry/cache"
)

// cachedCredentials mirrors Credentials for JSON round-tripping; Credentials
// itself has no json tags since it's an internal projection type.
type cachedCredentials struct {
	CSRFToken string            `json:"csrf_token"`
	Cookies   map[string]string `json:"cookies"`
	Gemini    json.RawMessage   `json:"gemini,omitempty"`
}

// CredentialCache wraps a cache.Cache to serve get_credentials lookups by
// key id, invalidating on every mutation.
type CredentialCache struct {
	backend cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCredentialCache constructs a CredentialCache. ttl <= 0 selects a
// 60-second default.
func NewCredentialCache(backend cache.Cache, ttl time.Duration, logger *zap.Logger) *CredentialCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CredentialCache{backend: backend, ttl: ttl, logger: logger}
}

func cacheKey(keyID uuid.UUID) string {
	return "credentials:" + keyID.String()
}

// Get returns the cached Credentials for keyID, or cache.ErrNotFound on a
// miss.
func (c *CredentialCache) Get(ctx context.Context, keyID uuid.UUID) (Credentials, error) {
	raw, err := c.backend.Get(ctx, cacheKey(keyID))
	if err != nil {
		return Credentials{}, err
	}
	var cc cachedCredentials
	if err := json.Unmarshal(raw, &cc); err != nil {
		return Credentials{}, err
	}
	return Credentials{CSRFToken: cc.CSRFToken, Cookies: cc.Cookies, Gemini: cc.Gemini}, nil
}

// Put stores creds for keyID with the configured TTL. Cache write failures
// are logged and swallowed: a miss just means the next read falls through to
// Postgres.
func (c *CredentialCache) Put(ctx context.Context, keyID uuid.UUID, creds Credentials) {
	raw, err := json.Marshal(cachedCredentials{
		CSRFToken: creds.CSRFToken,
		Cookies:   creds.Cookies,
		Gemini:    creds.Gemini,
	})
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, cacheKey(keyID), raw, c.ttl); err != nil && c.logger != nil {
		c.logger.Warn("credential cache write failed", zap.String("key_id", keyID.String()), zap.Error(err))
	}
}

// Invalidate drops any cached entry for keyID. Called after update_csrf,
// update_cookies, update_gemini, and delete_key.
func (c *CredentialCache) Invalidate(ctx context.Context, keyID uuid.UUID) {
	if err := c.backend.Delete(ctx, cacheKey(keyID)); err != nil && c.logger != nil {
		c.logger.Warn("credential cache invalidate failed", zap.String("key_id", keyID.String()), zap.Error(err))
	}
}
