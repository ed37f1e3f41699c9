package credentials

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence backend for API key records. PostgresStore is
// the production implementation; MemoryStore backs tests.
type Store interface {
	Insert(ctx context.Context, key *APIKey) error
	DeactivateActive(ctx context.Context, ownerUserID uuid.UUID, instanceID string) error
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
	FindByID(ctx context.Context, keyID uuid.UUID) (*APIKey, error)
	GetActiveByUser(ctx context.Context, ownerUserID uuid.UUID) (*APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error
	UpdateCSRF(ctx context.Context, keyID uuid.UUID, token string) error
	UpdateCookies(ctx context.Context, keyID uuid.UUID, cookies map[string]string) error
	UpdateGemini(ctx context.Context, keyID uuid.UUID, blob []byte) error
	SoftDelete(ctx context.Context, keyID uuid.UUID, at time.Time) error
	ListByUser(ctx context.Context, ownerUserID uuid.UUID) ([]APIKey, error)
}
