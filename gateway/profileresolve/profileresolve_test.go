package profileresolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/linkedingateway/gateway/gateway/credentials"
)

func envelopeFor(publicIdentifier, opaqueID string) string {
	return `{"included":[{"$type":"com.linkedin.voyager.dash.identity.profile.Profile",` +
		`"publicIdentifier":"` + publicIdentifier + `","entityUrn":"urn:li:fsd_profile:` + opaqueID + `"}]}`
}

func TestIsOpaqueID(t *testing.T) {
	if !IsOpaqueID("ACoAABkVEvgBT2z3eM2xSer_c0kq-ASBS1s-0JM") {
		t.Error("expected an ACoAA-prefixed id to be recognized as opaque")
	}
	if IsOpaqueID("janedoe") {
		t.Error("expected a vanity name not to be recognized as opaque")
	}
}

func TestResolveProfileIDSkipsNetworkForOpaqueID(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	r := New(srv.Client(), WithProfileURLTemplate(srv.URL+"/%s"))
	got, err := r.ResolveProfileID(context.Background(), "ACoAABkVEvg", credentials.Credentials{})
	if err != nil {
		t.Fatalf("ResolveProfileID: %v", err)
	}
	if got != "ACoAABkVEvg" {
		t.Errorf("got %q, want unchanged opaque id", got)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 for an already-opaque id", calls)
	}
}

func TestResolveProfileIDResolvesVanityName(t *testing.T) {
	var calls int32
	var gotCookie, gotCSRF string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotCookie = r.Header.Get("cookie")
		gotCSRF = r.Header.Get("csrf-token")
		w.Write([]byte(envelopeFor("janedoe", "ACoAABkVEvg")))
	}))
	defer srv.Close()

	r := New(srv.Client(), WithProfileURLTemplate(srv.URL+"/%s"))
	creds := credentials.Credentials{
		CSRFToken: "ajax:123",
		Cookies:   map[string]string{"li_at": "tok", "JSESSIONID": "ajax:123"},
	}
	got, err := r.ResolveProfileID(context.Background(), "janedoe", creds)
	if err != nil {
		t.Fatalf("ResolveProfileID: %v", err)
	}
	if got != "ACoAABkVEvg" {
		t.Errorf("got %q, want ACoAABkVEvg", got)
	}
	if gotCSRF != "ajax:123" {
		t.Errorf("csrf-token header = %q", gotCSRF)
	}
	if gotCookie != "JSESSIONID=ajax:123; li_at=tok" {
		t.Errorf("cookie header = %q, want sorted name order", gotCookie)
	}

	if _, err := r.ResolveProfileID(context.Background(), "janedoe", creds); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second resolution should be served from cache)", calls)
	}
}

func TestResolveProfileIDCollapsesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Write([]byte(envelopeFor("same-slug", "ACoAA1")))
	}))
	defer srv.Close()

	r := New(srv.Client(), WithProfileURLTemplate(srv.URL+"/%s"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ResolveProfileID(context.Background(), "same-slug", credentials.Credentials{}); err != nil {
				t.Errorf("ResolveProfileID: %v", err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (concurrent misses for the same slug should collapse)", calls)
	}
}

func TestResolveProfileIDNon2xxIsResolutionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := New(srv.Client(), WithProfileURLTemplate(srv.URL+"/%s"))
	_, err := r.ResolveProfileID(context.Background(), "missing", credentials.Credentials{})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestResolveProfileIDMissingMatchIsResolutionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"included":[]}`))
	}))
	defer srv.Close()

	r := New(srv.Client(), WithProfileURLTemplate(srv.URL+"/%s"))
	_, err := r.ResolveProfileID(context.Background(), "nobody", credentials.Credentials{})
	if err == nil {
		t.Fatal("expected an error when the response has no matching profile")
	}
}
