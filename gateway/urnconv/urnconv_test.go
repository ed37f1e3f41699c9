package urnconv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func envelopeFor(ugcID string) string {
	return `{"data":{"updateMetadata":{"urn":"urn:li:ugcPost:` + ugcID + `"}}}`
}

func TestResolveActivityToUGCPost(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(envelopeFor("999")))
	}))
	defer srv.Close()

	c := New(srv.Client(), WithSinglePostURLTemplate(srv.URL+"/%s"))
	got, err := c.ResolveActivityToUGCPost(context.Background(), "123")
	if err != nil {
		t.Fatalf("ResolveActivityToUGCPost: %v", err)
	}
	if got.ID != "999" {
		t.Errorf("got %+v", got)
	}

	if _, err := c.ResolveActivityToUGCPost(context.Background(), "123"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second resolution should be served from cache)", calls)
	}
}

func TestResolveActivityToUGCPostCollapsesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Write([]byte(envelopeFor("1")))
	}))
	defer srv.Close()

	c := New(srv.Client(), WithSinglePostURLTemplate(srv.URL+"/%s"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ResolveActivityToUGCPost(context.Background(), "same-id"); err != nil {
				t.Errorf("ResolveActivityToUGCPost: %v", err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (concurrent misses for the same id should collapse)", calls)
	}
}

func TestResolveActivityToUGCPostNon2xxIsConversionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.Client(), WithSinglePostURLTemplate(srv.URL+"/%s"))
	_, err := c.ResolveActivityToUGCPost(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestResolveActivityToUGCPostMissingURNIsConversionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), WithSinglePostURLTemplate(srv.URL+"/%s"))
	_, err := c.ResolveActivityToUGCPost(context.Background(), "no-urn")
	if err == nil {
		t.Fatal("expected an error when the response has no ugcPost urn")
	}
}
