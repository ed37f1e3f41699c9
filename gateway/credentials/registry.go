package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/pantry/audit"
	"github.com/linkedingateway/gateway/pantry/cache"
	"github.com/linkedingateway/gateway/pantry/crypto"
)

const keyPrefixLen = 8

// Registry is the Credential & Session Registry: it owns API key issuance,
// authentication, and the per-key CSRF/cookie/Gemini blob
// each browser extension instance keeps in sync. A per-key mutex serializes
// concurrent update_* calls for the same key so a cookie refresh and a CSRF
// refresh arriving back-to-back from the same extension instance can't
// interleave into a torn write; the Postgres partial unique index backs the
// one-active-key-per-instance invariant at the store level regardless of
// what the lock does.
type Registry struct {
	store  Store
	cache  *CredentialCache
	logger *zap.Logger
	audit  *audit.AuditLogger

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// New constructs a Registry. cc may be nil, in which case get_credentials
// always falls through to the store.
func New(store Store, cc *CredentialCache, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  cc,
		logger: logger,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetAuditLogger attaches an audit trail for key issuance and deletion.
// A nil Registry.audit (the default) disables auditing entirely.
func (r *Registry) SetAuditLogger(al *audit.AuditLogger) {
	r.audit = al
}

func (r *Registry) lockFor(keyID uuid.UUID) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[keyID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[keyID] = l
	}
	return l
}

// GenerateKey issues a new API key for (ownerUserID, instanceID),
// deactivating any previously active key for that same instance first. It
// returns the plaintext key exactly once; only its hash and an 8-character
// prefix are retained.
func (r *Registry) GenerateKey(ctx context.Context, ownerUserID uuid.UUID, instanceID, instanceName, browserInfo string) (plaintext string, key *APIKey, err error) {
	plaintext, err = generateSecret()
	if err != nil {
		return "", nil, fmt.Errorf("credentials: generate secret: %w", err)
	}
	hash := hashSecret(plaintext)

	if err := r.store.DeactivateActive(ctx, ownerUserID, instanceID); err != nil {
		return "", nil, fmt.Errorf("credentials: deactivate existing key: %w", err)
	}

	key = &APIKey{
		KeyID:        uuid.New(),
		OwnerUserID:  ownerUserID,
		InstanceID:   instanceID,
		InstanceName: instanceName,
		BrowserInfo:  browserInfo,
		KeyPrefix:    plaintext[:keyPrefixLen],
		KeyHash:      hash,
		Active:       true,
		CreatedAt:    time.Now(),
		Cookies:      map[string]string{},
	}
	if err := r.store.Insert(ctx, key); err != nil {
		return "", nil, fmt.Errorf("credentials: insert key: %w", err)
	}
	if r.audit != nil {
		audit.NewEvent("api_key.generate").
			Success().
			WithActorUser(ownerUserID.String(), "", "").
			WithResourceID("api_key", key.KeyID.String()).
			WithMetadata("instance_id", instanceID).
			LogAsync(ctx, r.audit)
	}
	return plaintext, key, nil
}

// Authenticate resolves a presented plaintext API key to its record,
// touching last_used_at on success. It returns ErrUnauthorized for any
// unknown or inactive key; callers must not distinguish the two cases in
// their response.
func (r *Registry) Authenticate(ctx context.Context, plaintext string) (*APIKey, error) {
	key, err := r.store.FindByHash(ctx, hashSecret(plaintext))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !key.Active {
		return nil, ErrUnauthorized
	}
	now := time.Now()
	if err := r.store.UpdateLastUsed(ctx, key.KeyID, now); err != nil && r.logger != nil {
		r.logger.Warn("update last_used_at failed", zap.String("key_id", key.KeyID.String()), zap.Error(err))
	}
	key.LastUsedAt = &now
	return key, nil
}

// GetCredentials returns the CSRF token, cookie jar, and Gemini blob for
// keyID, serving from cache when available.
func (r *Registry) GetCredentials(ctx context.Context, keyID uuid.UUID) (Credentials, error) {
	if r.cache != nil {
		if creds, err := r.cache.Get(ctx, keyID); err == nil {
			return creds, nil
		} else if !errors.Is(err, cache.ErrNotFound) && r.logger != nil {
			r.logger.Warn("credential cache read failed", zap.String("key_id", keyID.String()), zap.Error(err))
		}
	}

	key, err := r.store.FindByID(ctx, keyID)
	if err != nil {
		return Credentials{}, err
	}
	creds := Credentials{CSRFToken: key.CSRFToken, Cookies: key.Cookies, Gemini: key.GeminiBlob}
	if r.cache != nil {
		r.cache.Put(ctx, keyID, creds)
	}
	return creds, nil
}

// UpdateCSRF overwrites the stored CSRF token for keyID.
func (r *Registry) UpdateCSRF(ctx context.Context, keyID uuid.UUID, token string) error {
	l := r.lockFor(keyID)
	l.Lock()
	defer l.Unlock()

	if err := r.store.UpdateCSRF(ctx, keyID, stripQuotes(token)); err != nil {
		return err
	}
	r.invalidate(ctx, keyID)
	return nil
}

// UpdateCookies replaces keyID's whole cookie jar with cookies, applying the
// JSESSIONID quote-stripping rule to every value. Cookies absent from the
// new map are not kept.
func (r *Registry) UpdateCookies(ctx context.Context, keyID uuid.UUID, cookies map[string]string) error {
	l := r.lockFor(keyID)
	l.Lock()
	defer l.Unlock()

	stripped := stripQuotesFromMap(cookies)
	if err := r.store.UpdateCookies(ctx, keyID, stripped); err != nil {
		return err
	}
	r.invalidate(ctx, keyID)
	return nil
}

// UpdateGemini overwrites the stored Gemini credential blob for keyID. The
// blob is opaque JSON; the registry never parses it.
func (r *Registry) UpdateGemini(ctx context.Context, keyID uuid.UUID, blob []byte) error {
	l := r.lockFor(keyID)
	l.Lock()
	defer l.Unlock()

	if err := r.store.UpdateGemini(ctx, keyID, blob); err != nil {
		return err
	}
	r.invalidate(ctx, keyID)
	return nil
}

// DeleteKey soft-deletes keyID (sets active=false, revoked_at=now).
func (r *Registry) DeleteKey(ctx context.Context, keyID uuid.UUID) error {
	l := r.lockFor(keyID)
	l.Lock()
	defer l.Unlock()

	if err := r.store.SoftDelete(ctx, keyID, time.Now()); err != nil {
		return err
	}
	r.invalidate(ctx, keyID)
	if r.audit != nil {
		audit.NewEvent("api_key.delete").
			Success().
			WithResourceID("api_key", keyID.String()).
			LogAsync(ctx, r.audit)
	}
	return nil
}

// ListKeys returns every key (active and revoked) owned by ownerUserID.
func (r *Registry) ListKeys(ctx context.Context, ownerUserID uuid.UUID) ([]APIKey, error) {
	return r.store.ListByUser(ctx, ownerUserID)
}

func (r *Registry) invalidate(ctx context.Context, keyID uuid.UUID) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, keyID)
	}
}

func generateSecret() (string, error) {
	return crypto.GenerateAPIKey("lig")
}

// hashSecret hashes a plaintext API key with SHA-256. Unlike a user
// password, the plaintext here is itself 192 bits of CSPRNG output, so a
// fast hash carries no brute-force risk a slow one would mitigate; see
// DESIGN.md.
func hashSecret(plaintext string) string {
	return crypto.SHA256Hex([]byte(plaintext))
}
