package authstatus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandlerReportsConfigured(t *testing.T) {
	h := New(true)
	req := httptest.NewRequest(http.MethodGet, "/auth/linkedin/config-status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body["is_configured"] {
		t.Errorf("is_configured = %v, want true", body["is_configured"])
	}
}

func TestHandlerReportsNotConfigured(t *testing.T) {
	h := New(false)
	req := httptest.NewRequest(http.MethodGet, "/auth/linkedin/config-status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["is_configured"] {
		t.Errorf("is_configured = %v, want false", body["is_configured"])
	}
}
