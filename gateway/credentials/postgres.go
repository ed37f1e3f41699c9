// Postgres-backed Store, using the same raw pgx idiom as pantry/db/postgres:
// no ORM, a thin pgxpool wrapper, explicit SQL per operation.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkedingateway/gateway/pantry/crypto"
)

// PostgresStore implements Store over a pgxpool.Pool against the api_keys
// table it creates via EnsureSchema.
type PostgresStore struct {
	pool *pgxpool.Pool
	enc  *crypto.Encryptor
}

// NewPostgresStore wraps an already-connected pool (see
// pantry/db/postgres.ConnectPool for how callers obtain one).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SetEncryptor enables at-rest AES-GCM encryption of the CSRF token, cookie
// jar, and Gemini blob columns. A nil encryptor (the default) leaves those
// columns in plaintext, which is also what lets existing rows written before
// encryption was enabled keep reading back correctly.
func (s *PostgresStore) SetEncryptor(enc *crypto.Encryptor) {
	s.enc = enc
}

// encryptJSON marshals v and, if an encryptor is set, seals the marshaled
// bytes and re-wraps the base64 ciphertext as a JSON string so the column
// stays valid JSONB either way.
func (s *PostgresStore) encryptJSON(v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.enc == nil {
		return plain, nil
	}
	ct, err := s.enc.EncryptString(string(plain))
	if err != nil {
		return nil, err
	}
	return json.Marshal(ct)
}

// decryptJSON reverses encryptJSON into out.
func (s *PostgresStore) decryptJSON(stored []byte, out any) error {
	if s.enc == nil {
		return json.Unmarshal(stored, out)
	}
	var ct string
	if err := json.Unmarshal(stored, &ct); err != nil {
		return err
	}
	plain, err := s.enc.DecryptString(ct)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(plain), out)
}

// encryptText seals a plain TEXT column value, returning it unchanged when
// no encryptor is set or the value is empty.
func (s *PostgresStore) encryptText(plain string) (string, error) {
	if s.enc == nil || plain == "" {
		return plain, nil
	}
	return s.enc.EncryptString(plain)
}

// decryptText reverses encryptText.
func (s *PostgresStore) decryptText(stored string) (string, error) {
	if s.enc == nil || stored == "" {
		return stored, nil
	}
	return s.enc.DecryptString(stored)
}

// EnsureSchema creates the api_keys table and its partial unique index if
// they don't already exist. Intended for the app.Hooks.EnsureSchema step.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			key_id             UUID PRIMARY KEY,
			owner_user_id      UUID NOT NULL,
			instance_id        TEXT NOT NULL,
			instance_name      TEXT NOT NULL,
			browser_info       TEXT NOT NULL DEFAULT '',
			key_prefix         TEXT NOT NULL,
			key_hash           TEXT NOT NULL UNIQUE,
			active             BOOLEAN NOT NULL DEFAULT TRUE,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_used_at       TIMESTAMPTZ,
			revoked_at         TIMESTAMPTZ,
			csrf_token         TEXT NOT NULL DEFAULT '',
			linkedin_cookies   JSONB NOT NULL DEFAULT '{}',
			gemini_credentials JSONB NOT NULL DEFAULT '{}'
		);
		CREATE UNIQUE INDEX IF NOT EXISTS one_active_key_per_instance
			ON api_keys (owner_user_id, instance_id) WHERE active;
	`)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, key *APIKey) error {
	cookies, err := s.encryptJSON(key.Cookies)
	if err != nil {
		return err
	}
	gemini := key.GeminiBlob
	if gemini == nil {
		gemini = []byte("{}")
	}
	var geminiRaw json.RawMessage
	if err := json.Unmarshal(gemini, &geminiRaw); err != nil {
		return err
	}
	geminiStored, err := s.encryptJSON(geminiRaw)
	if err != nil {
		return err
	}
	csrf, err := s.encryptText(key.CSRFToken)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO api_keys
			(key_id, owner_user_id, instance_id, instance_name, browser_info,
			 key_prefix, key_hash, active, created_at, csrf_token,
			 linkedin_cookies, gemini_credentials)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, key.KeyID, key.OwnerUserID, key.InstanceID, key.InstanceName, key.BrowserInfo,
		key.KeyPrefix, key.KeyHash, key.Active, key.CreatedAt, csrf, cookies, geminiStored)
	return err
}

func (s *PostgresStore) DeactivateActive(ctx context.Context, ownerUserID uuid.UUID, instanceID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET active = FALSE, revoked_at = now()
		WHERE owner_user_id = $1 AND instance_id = $2 AND active
	`, ownerUserID, instanceID)
	return err
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` WHERE key_hash = $1`, hash)
	return s.scanKey(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, keyID uuid.UUID) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` WHERE key_id = $1`, keyID)
	return s.scanKey(row)
}

func (s *PostgresStore) GetActiveByUser(ctx context.Context, ownerUserID uuid.UUID) (*APIKey, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` WHERE owner_user_id = $1 AND active LIMIT 1`, ownerUserID)
	return s.scanKey(row)
}

func (s *PostgresStore) UpdateLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE key_id = $1`, keyID, at)
	return err
}

func (s *PostgresStore) UpdateCSRF(ctx context.Context, keyID uuid.UUID, token string) error {
	stored, err := s.encryptText(token)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE api_keys SET csrf_token = $2 WHERE key_id = $1`, keyID, stored)
	return err
}

func (s *PostgresStore) UpdateCookies(ctx context.Context, keyID uuid.UUID, cookies map[string]string) error {
	blob, err := s.encryptJSON(cookies)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE api_keys SET linkedin_cookies = $2 WHERE key_id = $1`, keyID, blob)
	return err
}

func (s *PostgresStore) UpdateGemini(ctx context.Context, keyID uuid.UUID, blob []byte) error {
	if blob == nil {
		blob = []byte("{}")
	}
	var raw json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return err
	}
	stored, err := s.encryptJSON(raw)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE api_keys SET gemini_credentials = $2 WHERE key_id = $1`, keyID, stored)
	return err
}

func (s *PostgresStore) SoftDelete(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET active = FALSE, revoked_at = $2 WHERE key_id = $1`, keyID, at)
	return err
}

func (s *PostgresStore) ListByUser(ctx context.Context, ownerUserID uuid.UUID) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE owner_user_id = $1 ORDER BY created_at DESC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		k, err := s.scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT key_id, owner_user_id, instance_id, instance_name, browser_info,
	       key_prefix, key_hash, active, created_at, last_used_at, revoked_at,
	       csrf_token, linkedin_cookies, gemini_credentials
	FROM api_keys
`

// rowScanner is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query).
type rowScanner interface {
	Scan(dest ...any) error
}

// scanKey is a method (not a free function) so it can decrypt columns
// through s.enc; Store callers only ever reach it via a *PostgresStore.
func (s *PostgresStore) scanKey(row rowScanner) (*APIKey, error) {
	var k APIKey
	var csrf string
	var cookies, gemini []byte
	err := row.Scan(&k.KeyID, &k.OwnerUserID, &k.InstanceID, &k.InstanceName, &k.BrowserInfo,
		&k.KeyPrefix, &k.KeyHash, &k.Active, &k.CreatedAt, &k.LastUsedAt, &k.RevokedAt,
		&csrf, &cookies, &gemini)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	if k.CSRFToken, err = s.decryptText(csrf); err != nil {
		return nil, err
	}
	if err := s.decryptJSON(cookies, &k.Cookies); err != nil {
		return nil, err
	}
	var geminiRaw json.RawMessage
	if err := s.decryptJSON(gemini, &geminiRaw); err != nil {
		return nil, err
	}
	k.GeminiBlob = geminiRaw
	return &k, nil
}
