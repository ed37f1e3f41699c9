package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/directclient"
	"github.com/linkedingateway/gateway/gateway/orchestrator"
	"github.com/linkedingateway/gateway/gateway/profileresolve"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/wsrouter"
)

func feedEnvelope() map[string]any {
	return map[string]any{
		"data": map[string]any{
			"data": map[string]any{
				"metadata": map[string]any{},
			},
		},
		"included": []any{
			map[string]any{
				"$type":     "com.linkedin.voyager.feed.render.feed.Update",
				"entityUrn": "urn:li:activity:1",
				"actor":     map[string]any{"urn": "urn:li:member:1"},
				"createdAt": float64(1000),
			},
		},
	}
}

// testAPI wires an API against an in-memory credentials registry (with one
// pre-issued key) and a direct-mode orchestrator pointed at an upstream
// test server, plus a disconnected wsrouter for proxy-mode tests.
func testAPI(t *testing.T, upstreamURL string) (*API, string) {
	t.Helper()
	reg := credentials.New(credentials.NewMemoryStore(), nil, nil)
	owner := uuid.New()
	plaintext, _, err := reg.GenerateKey(context.Background(), owner, "inst-1", "Chrome", "ua")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	builder := urlbuilder.New(upstreamURL, urlbuilder.QueryIDs{
		urlbuilder.KindFeed: "1234",
	}, nil, nil)
	direct := directclient.New()
	router := wsrouter.New(wsrouter.NewAuthenticator("shh"), nil)
	orch := orchestrator.New(builder, direct, router, nil)

	return &API{
		Registry:        reg,
		Builder:         builder,
		Orchestrator:    orch,
		Router:          router,
		DefaultPageSize: 10,
		Info: ServerInfo{
			Version:             "1.0.0",
			MinExtensionVersion: "1.0.0",
			Edition:             "core",
			Channel:             "stable",
			ServerName:          "test",
		},
	}, plaintext
}

func newServer(t *testing.T, a *API) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	a.Mount(r)
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body map[string]any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func TestHandleFeedDirectModeHappyPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(feedEnvelope())
	}))
	defer upstream.Close()

	a, plaintext := testAPI(t, upstream.URL)
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{
		"count":       1,
		"server_call": true,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	data, ok := body["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v, want a single-item array", body["data"])
	}
}

func TestHandleFeedBodyAPIKeyTakesPrecedenceOverHeader(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(feedEnvelope())
	}))
	defer upstream.Close()

	a, plaintext := testAPI(t, upstream.URL)
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{
		"count":       1,
		"server_call": true,
		"api_key":     plaintext,
	}, map[string]string{"X-API-Key": "wrong-header-key"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body api_key should win over header)", resp.StatusCode)
	}
}

func TestHandleFeedUnauthorizedOnUnknownKey(t *testing.T) {
	a, _ := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{}, map[string]string{"X-API-Key": "LKG_nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != "Unauthorized" {
		t.Errorf("code = %v, want Unauthorized", body["code"])
	}
}

func TestHandleFeedUnauthorizedOnMissingKey(t *testing.T) {
	a, _ := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHandleFeedValidationFailedOnCountOutOfRange(t *testing.T) {
	a, plaintext := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{
		"count": 0,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != "ValidationFailed" {
		t.Errorf("code = %v, want ValidationFailed", body["code"])
	}
}

func TestHandleFeedValidationFailedWhenMaxDelayBelowMinDelay(t *testing.T) {
	a, plaintext := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{
		"min_delay": 10.0,
		"max_delay": 2.0,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlePostCommentsParseErrorOnBadPostURL(t *testing.T) {
	a, plaintext := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/comments", map[string]any{
		"post_url": "https://example.com/not-a-post",
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != "ParseError" {
		t.Errorf("code = %v, want ParseError", body["code"])
	}
}

func TestHandleProfilePostsResolvesVanityName(t *testing.T) {
	var gotProfileURN string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProfileURN = r.URL.RawQuery
		json.NewEncoder(w).Encode(feedEnvelope())
	}))
	defer upstream.Close()

	resolverSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"included":[{"$type":"com.linkedin.voyager.dash.identity.profile.Profile",` +
			`"publicIdentifier":"janedoe","entityUrn":"urn:li:fsd_profile:ACoAABkVEvg"}]}`))
	}))
	defer resolverSrv.Close()

	a, plaintext := testAPI(t, upstream.URL)
	a.Builder.QueryIDs[urlbuilder.KindProfilePosts] = "5678"
	a.ProfileResolver = profileresolve.New(resolverSrv.Client(), profileresolve.WithProfileURLTemplate(resolverSrv.URL+"/%s"))

	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/profile/posts", map[string]any{
		"profile_url": "https://www.linkedin.com/in/janedoe/",
		"server_call": true,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusOK {
		body := decodeBody(t, resp)
		t.Fatalf("status = %d, want 200, body = %v", resp.StatusCode, body)
	}
	if !strings.Contains(gotProfileURN, "fsd_profile%3AACoAABkVEvg") {
		t.Errorf("upstream query = %q, want it to carry the resolved opaque profile id", gotProfileURN)
	}
}

func TestHandleProfilePostsUsesOpaqueIDWithoutResolving(t *testing.T) {
	var gotProfileURN string
	var resolverCalls int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProfileURN = r.URL.RawQuery
		json.NewEncoder(w).Encode(feedEnvelope())
	}))
	defer upstream.Close()

	resolverSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&resolverCalls, 1)
	}))
	defer resolverSrv.Close()

	a, plaintext := testAPI(t, upstream.URL)
	a.Builder.QueryIDs[urlbuilder.KindProfilePosts] = "5678"
	a.ProfileResolver = profileresolve.New(resolverSrv.Client(), profileresolve.WithProfileURLTemplate(resolverSrv.URL+"/%s"))

	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/profile/posts", map[string]any{
		"profile_url": "https://www.linkedin.com/in/ACoAABkVEvg/",
		"server_call": true,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusOK {
		body := decodeBody(t, resp)
		t.Fatalf("status = %d, want 200, body = %v", resp.StatusCode, body)
	}
	if !strings.Contains(gotProfileURN, "fsd_profile%3AACoAABkVEvg") {
		t.Errorf("upstream query = %q, want the opaque id passed through unresolved", gotProfileURN)
	}
	if resolverCalls != 0 {
		t.Errorf("resolver calls = %d, want 0 for an already-opaque id", resolverCalls)
	}
}

func TestHandleFeedNoProxyConnectionWhenNoSocket(t *testing.T) {
	a, plaintext := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{
		"server_call": false,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != "NoProxyConnection" {
		t.Errorf("code = %v, want NoProxyConnection", body["code"])
	}
}

func TestHandleFeedServerExecutionDisabledOnSaaS(t *testing.T) {
	a, plaintext := testAPI(t, "http://unused")
	a.Info.Edition = "saas"
	srv := newServer(t, a)
	defer srv.Close()

	resp := doJSON(t, srv, "POST", "/posts/feed", map[string]any{
		"server_call": true,
	}, map[string]string{"X-API-Key": plaintext})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != "ServerExecutionDisabled" {
		t.Errorf("code = %v, want ServerExecutionDisabled", body["code"])
	}
}

func TestHandleVersion(t *testing.T) {
	a, _ := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body := decodeBody(t, resp)
	if body["version"] != "1.0.0" {
		t.Errorf("version = %v, want 1.0.0", body["version"])
	}
	features, ok := body["features"].(map[string]any)
	if !ok || features["multi_key_support"] != true {
		t.Errorf("features = %v, want multi_key_support: true", body["features"])
	}
}

func TestHandleServerInfo(t *testing.T) {
	a, _ := testAPI(t, "http://unused")
	srv := newServer(t, a)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/v1/server/info")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body := decodeBody(t, resp)
	if body["edition"] != "core" {
		t.Errorf("edition = %v, want core", body["edition"])
	}
	if body["server_name"] != "test" {
		t.Errorf("server_name = %v, want test", body["server_name"])
	}
}
