package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store implementation used by tests. Unlike
// the Postgres partial unique index, Insert does not check the
// one-active-key-per-instance invariant; only DeactivateActive clears
// earlier active keys.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*APIKey
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[uuid.UUID]*APIKey)}
}

func clone(k *APIKey) *APIKey {
	cp := *k
	cp.Cookies = stripQuotesFromMap(k.Cookies)
	return &cp
}

func (s *MemoryStore) Insert(ctx context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.KeyID] = clone(key)
	return nil
}

func (s *MemoryStore) DeactivateActive(ctx context.Context, ownerUserID uuid.UUID, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, k := range s.keys {
		if k.OwnerUserID == ownerUserID && k.InstanceID == instanceID && k.Active {
			k.Active = false
			k.RevokedAt = &now
		}
	}
	return nil
}

func (s *MemoryStore) FindByHash(ctx context.Context, hash string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == hash {
			return clone(k), nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryStore) FindByID(ctx context.Context, keyID uuid.UUID) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		return clone(k), nil
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryStore) GetActiveByUser(ctx context.Context, ownerUserID uuid.UUID) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.OwnerUserID == ownerUserID && k.Active {
			return clone(k), nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryStore) UpdateLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		k.LastUsedAt = &at
	}
	return nil
}

func (s *MemoryStore) UpdateCSRF(ctx context.Context, keyID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		k.CSRFToken = stripQuotes(token)
	}
	return nil
}

func (s *MemoryStore) UpdateCookies(ctx context.Context, keyID uuid.UUID, cookies map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		k.Cookies = stripQuotesFromMap(cookies)
	}
	return nil
}

func (s *MemoryStore) UpdateGemini(ctx context.Context, keyID uuid.UUID, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		k.GeminiBlob = blob
	}
	return nil
}

func (s *MemoryStore) SoftDelete(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[keyID]; ok {
		k.Active = false
		k.RevokedAt = &at
	}
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, ownerUserID uuid.UUID) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []APIKey
	for _, k := range s.keys {
		if k.OwnerUserID == ownerUserID {
			out = append(out, *clone(k))
		}
	}
	return out, nil
}
