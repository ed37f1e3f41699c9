package directclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/gwerrors"
)

func testCreds() credentials.Credentials {
	return credentials.Credentials{
		CSRFToken: "ajax:1234",
		Cookies:   map[string]string{"li_at": "token-a", "JSESSIONID": "ajax:1234"},
	}
}

func TestExecuteSendsExpectedHeaders(t *testing.T) {
	var gotCookie, gotCSRF, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("cookie")
		gotCSRF = r.Header.Get("csrf-token")
		gotAccept = r.Header.Get("accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()))
	body, err := c.Execute(context.Background(), srv.URL, testCreds())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(body) != `{"data":{}}` {
		t.Errorf("body = %s", body)
	}
	if gotCookie != "JSESSIONID=ajax:1234; li_at=token-a" {
		t.Errorf("cookie header = %q, want sorted by name", gotCookie)
	}
	if gotCSRF != "ajax:1234" {
		t.Errorf("csrf-token header = %q", gotCSRF)
	}
	if gotAccept != "application/vnd.linkedin.normalized+json+2.1" {
		t.Errorf("accept header = %q", gotAccept)
	}
}

func TestExecuteMapsUnauthorizedToAuthStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()))
	_, err := c.Execute(context.Background(), srv.URL, testCreds())
	var gwErr *gwerrors.Error
	if !errors.As(err, &gwErr) || gwErr.Code != "AuthStale" {
		t.Fatalf("expected AuthStale, got %v", err)
	}
}

func TestExecuteMapsNon2xxToUpstreamHttpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()))
	_, err := c.Execute(context.Background(), srv.URL, testCreds())
	var gwErr *gwerrors.Error
	if !errors.As(err, &gwErr) || gwErr.Code != "UpstreamHttpError" {
		t.Fatalf("expected UpstreamHttpError, got %v", err)
	}
}

func TestExecuteTransportFailureMapsToUpstreamTransportError(t *testing.T) {
	c := New(WithHTTPClient(http.DefaultClient))
	_, err := c.Execute(context.Background(), "http://127.0.0.1:1/unreachable", testCreds())
	var gwErr *gwerrors.Error
	if !errors.As(err, &gwErr) || gwErr.Code != "UpstreamTransportError" {
		t.Fatalf("expected UpstreamTransportError, got %v", err)
	}
}
