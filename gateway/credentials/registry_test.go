package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestRegistry() *Registry {
	return New(NewMemoryStore(), nil, nil)
}

func TestGenerateKeyDeactivatesPriorInstanceKey(t *testing.T) {
	r := newTestRegistry()
	owner := uuid.New()
	ctx := context.Background()

	plain1, key1, err := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/120")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if plain1 == "" || key1.KeyHash == "" {
		t.Fatalf("expected plaintext and hash to be set")
	}

	_, key2, err := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/121")
	if err != nil {
		t.Fatalf("second GenerateKey: %v", err)
	}
	if key2.KeyID == key1.KeyID {
		t.Fatalf("expected a new key id on reissue")
	}

	keys, err := r.ListKeys(ctx, owner)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	activeCount := 0
	for _, k := range keys {
		if k.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly 1 active key, got %d", activeCount)
	}

	if _, err := r.Authenticate(ctx, plain1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected superseded key to be unauthorized, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownKey(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Authenticate(context.Background(), "lig_nonexistent"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateAcceptsIssuedKey(t *testing.T) {
	r := newTestRegistry()
	owner := uuid.New()
	ctx := context.Background()

	plain, key, err := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/120")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	got, err := r.Authenticate(ctx, plain)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.KeyID != key.KeyID {
		t.Fatalf("authenticate resolved to wrong key")
	}
	if got.LastUsedAt == nil {
		t.Fatalf("expected LastUsedAt to be set after authenticate")
	}
}

func TestUpdateCookiesStripsJSessionIDQuotes(t *testing.T) {
	r := newTestRegistry()
	owner := uuid.New()
	ctx := context.Background()

	_, key, err := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/120")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	err = r.UpdateCookies(ctx, key.KeyID, map[string]string{
		"JSESSIONID": `"ajax:1234567890"`,
		"li_at":      "unquoted-value",
	})
	if err != nil {
		t.Fatalf("UpdateCookies: %v", err)
	}

	creds, err := r.GetCredentials(ctx, key.KeyID)
	if err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}
	if creds.Cookies["JSESSIONID"] != "ajax:1234567890" {
		t.Errorf("JSESSIONID = %q, want unquoted", creds.Cookies["JSESSIONID"])
	}
	if creds.Cookies["li_at"] != "unquoted-value" {
		t.Errorf("li_at = %q, want unchanged", creds.Cookies["li_at"])
	}
}

func TestUpdateCSRFStripsQuotes(t *testing.T) {
	r := newTestRegistry()
	owner := uuid.New()
	ctx := context.Background()

	_, key, _ := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/120")

	if err := r.UpdateCSRF(ctx, key.KeyID, `"ajax:9999"`); err != nil {
		t.Fatalf("UpdateCSRF: %v", err)
	}
	creds, err := r.GetCredentials(ctx, key.KeyID)
	if err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}
	if creds.CSRFToken != "ajax:9999" {
		t.Errorf("CSRFToken = %q, want unquoted", creds.CSRFToken)
	}
}

func TestDeleteKeyDeactivates(t *testing.T) {
	r := newTestRegistry()
	owner := uuid.New()
	ctx := context.Background()

	plain, key, _ := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/120")
	if err := r.DeleteKey(ctx, key.KeyID); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := r.Authenticate(ctx, plain); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected deleted key to be unauthorized, got %v", err)
	}
}

func TestGeminiBlobRoundTrips(t *testing.T) {
	r := newTestRegistry()
	owner := uuid.New()
	ctx := context.Background()

	_, key, _ := r.GenerateKey(ctx, owner, "inst-1", "Chrome", "Chrome/120")
	blob := []byte(`{"token":"opaque"}`)
	if err := r.UpdateGemini(ctx, key.KeyID, blob); err != nil {
		t.Fatalf("UpdateGemini: %v", err)
	}
	creds, err := r.GetCredentials(ctx, key.KeyID)
	if err != nil {
		t.Fatalf("GetCredentials: %v", err)
	}
	if string(creds.Gemini) != string(blob) {
		t.Errorf("Gemini = %s, want %s", creds.Gemini, blob)
	}
}
