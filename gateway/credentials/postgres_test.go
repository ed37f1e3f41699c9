package credentials

import (
	"testing"

	"github.com/linkedingateway/gateway/pantry/crypto"
)

func TestPostgresStoreEncryptDecryptRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey(32)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	s := &PostgresStore{}
	s.SetEncryptor(enc)

	stored, err := s.encryptText("li_at=abc123")
	if err != nil {
		t.Fatalf("encryptText: %v", err)
	}
	if stored == "li_at=abc123" {
		t.Fatalf("expected ciphertext, got plaintext back")
	}
	plain, err := s.decryptText(stored)
	if err != nil {
		t.Fatalf("decryptText: %v", err)
	}
	if plain != "li_at=abc123" {
		t.Fatalf("decryptText = %q, want original", plain)
	}

	cookies := map[string]string{"li_at": "abc123", "JSESSIONID": "ajax:123"}
	blob, err := s.encryptJSON(cookies)
	if err != nil {
		t.Fatalf("encryptJSON: %v", err)
	}
	var out map[string]string
	if err := s.decryptJSON(blob, &out); err != nil {
		t.Fatalf("decryptJSON: %v", err)
	}
	if out["li_at"] != "abc123" || out["JSESSIONID"] != "ajax:123" {
		t.Fatalf("decryptJSON round trip mismatch: %v", out)
	}
}

func TestPostgresStoreNoEncryptorPassesThrough(t *testing.T) {
	s := &PostgresStore{}

	stored, err := s.encryptText("plain")
	if err != nil {
		t.Fatalf("encryptText: %v", err)
	}
	if stored != "plain" {
		t.Fatalf("encryptText with no encryptor = %q, want unchanged", stored)
	}

	cookies := map[string]string{"a": "b"}
	blob, err := s.encryptJSON(cookies)
	if err != nil {
		t.Fatalf("encryptJSON: %v", err)
	}
	var out map[string]string
	if err := s.decryptJSON(blob, &out); err != nil {
		t.Fatalf("decryptJSON: %v", err)
	}
	if out["a"] != "b" {
		t.Fatalf("decryptJSON with no encryptor mismatch: %v", out)
	}
}
