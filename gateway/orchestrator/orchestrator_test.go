package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/directclient"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/wsrouter"
)

func feedEnvelope(items int, paginationToken string) map[string]any {
	included := make([]any, items)
	for i := 0; i < items; i++ {
		included[i] = map[string]any{
			"$type":     "com.linkedin.voyager.feed.render.feed.Update",
			"entityUrn": fmt.Sprintf("urn:li:activity:%d", i),
			"actor":     map[string]any{"urn": "urn:li:member:1"},
			"createdAt": float64(1000 + i),
		}
	}
	metadata := map[string]any{}
	if paginationToken != "" {
		metadata["paginationToken"] = paginationToken
	}
	return map[string]any{
		"data": map[string]any{
			"data": map[string]any{
				"metadata": metadata,
			},
		},
		"included": included,
	}
}

func newDirectBuilder(t *testing.T, baseURL string) *urlbuilder.Builder {
	t.Helper()
	return urlbuilder.New(baseURL, urlbuilder.QueryIDs{
		urlbuilder.KindFeed: "1234",
	}, nil, nil)
}

func TestRunAccumulatesAcrossPagesAndStopsOnEmptyPaginationToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var envelope map[string]any
		if n == 1 {
			envelope = feedEnvelope(2, "page-2-token")
		} else {
			envelope = feedEnvelope(2, "")
		}
		json.NewEncoder(w).Encode(envelope)
	}))
	defer srv.Close()

	o := New(newDirectBuilder(t, srv.URL), directclient.New(directclient.WithHTTPClient(srv.Client())), nil, nil)

	plan := FetchPlan{
		Mode:        ModeDirect,
		Endpoint:    urlbuilder.KindFeed,
		PageSize:    2,
		Count:       -1,
		Credentials: credentials.Credentials{},
	}
	items, err := o.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("len(items) = %d, want 4", len(items))
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (loop should stop once paginationToken is empty)", calls)
	}
}

func TestRunTruncatesToRequestedCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(feedEnvelope(5, "more"))
	}))
	defer srv.Close()

	o := New(newDirectBuilder(t, srv.URL), directclient.New(directclient.WithHTTPClient(srv.Client())), nil, nil)

	plan := FetchPlan{
		Mode:     ModeDirect,
		Endpoint: urlbuilder.KindFeed,
		PageSize: 5,
		Count:    3,
	}
	items, err := o.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
}

func TestRunReturnsPartialSuccessOnMidPaginationUpstreamHttpError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			json.NewEncoder(w).Encode(feedEnvelope(2, "page-2-token"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	o := New(newDirectBuilder(t, srv.URL), directclient.New(directclient.WithHTTPClient(srv.Client())), nil, nil)

	plan := FetchPlan{
		Mode:     ModeDirect,
		Endpoint: urlbuilder.KindFeed,
		PageSize: 2,
		Count:    -1,
	}
	items, err := o.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: expected partial success (nil error), got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (first page only)", len(items))
	}
}

func TestRunFailsImmediatelyOnFirstPageUpstreamHttpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	o := New(newDirectBuilder(t, srv.URL), directclient.New(directclient.WithHTTPClient(srv.Client())), nil, nil)

	plan := FetchPlan{
		Mode:     ModeDirect,
		Endpoint: urlbuilder.KindFeed,
		PageSize: 2,
		Count:    -1,
	}
	items, err := o.Run(context.Background(), plan)
	if err == nil {
		t.Fatalf("expected an error when the very first page fails (nothing accumulated yet)")
	}
	if len(items) != 0 {
		t.Fatalf("len(items) = %d, want 0", len(items))
	}
}

func TestRunFailsImmediatelyWhenNoProxyConnection(t *testing.T) {
	o := New(newDirectBuilder(t, "http://unused"), nil, wsrouter.New(wsrouter.NewAuthenticator("shh"), nil), nil)

	plan := FetchPlan{
		Mode:     ModeProxy,
		UserID:   "no-such-user",
		Endpoint: urlbuilder.KindFeed,
		PageSize: 2,
		Count:    -1,
	}
	_, err := o.Run(context.Background(), plan)
	if err == nil {
		t.Fatalf("expected NoProxyConnection to fail the call immediately")
	}
}

func TestSleepJitterSkipsWhenNoDelayConfigured(t *testing.T) {
	start := time.Now()
	if err := sleepJitter(context.Background(), 0, 0); err != nil {
		t.Fatalf("sleepJitter: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("expected a zero delay to return almost immediately")
	}
}

func TestSleepJitterRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepJitter(ctx, 5, 5); err == nil {
		t.Fatalf("expected context cancellation to short-circuit the delay")
	}
}
