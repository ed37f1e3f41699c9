// Package urnconv resolves LinkedIn activity ids to their ugcPost URN, the
// form several endpoints require. Resolutions are cached for the lifetime of
// the process (the mapping is small and entries never expire) and concurrent
// misses for the same id collapse into a single inflight request, mirroring
// the RWMutex-guarded map pattern pantry/cache/memory.go uses but swapping
// its TTL eviction for golang.org/x/sync/singleflight's collapse semantics,
// since this cache never expires.
package urnconv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/linkedingateway/gateway/gateway/urn"
	"golang.org/x/sync/singleflight"
)

// ErrConversionFailed is returned (wrapped) when the single-post lookup
// fails or the response doesn't contain a ugcPost URN. Callers treat this
// as non-fatal, falling back to the unconverted id.
var ErrConversionFailed = fmt.Errorf("urnconv: conversion failed")

// defaultSinglePostURLTemplate is LinkedIn's single-post endpoint; %s is the
// activity id. The envelope it returns is minimal: just enough to extract
// updateMetadata.urn.
const defaultSinglePostURLTemplate = "https://www.linkedin.com/voyager/api/feed/updatesV2/urn:li:activity:%s"

// Converter caches activity_id -> ugcPost URN resolutions.
type Converter struct {
	httpClient       *http.Client
	singlePostURLFmt string
	group            singleflight.Group

	mu    sync.RWMutex
	cache map[string]urn.URN
}

// Option configures a Converter at construction time.
type Option func(*Converter)

// WithSinglePostURLTemplate overrides the single-post endpoint template
// (tests point this at an httptest.Server).
func WithSinglePostURLTemplate(format string) Option {
	return func(c *Converter) { c.singlePostURLFmt = format }
}

// New constructs a Converter using the given HTTP client (nil selects a
// client with a 15s timeout).
func New(httpClient *http.Client, opts ...Option) *Converter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &Converter{
		httpClient:       httpClient,
		singlePostURLFmt: defaultSinglePostURLTemplate,
		cache:            make(map[string]urn.URN),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveActivityToUGCPost resolves activityID to its ugcPost URN, serving
// from cache when possible and collapsing concurrent misses for the same id
// into one outstanding HTTP call.
func (c *Converter) ResolveActivityToUGCPost(ctx context.Context, activityID string) (urn.URN, error) {
	c.mu.RLock()
	cached, ok := c.cache[activityID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(activityID, func() (any, error) {
		resolved, err := c.fetch(ctx, activityID)
		if err != nil {
			return urn.URN{}, err
		}
		c.mu.Lock()
		c.cache[activityID] = resolved
		c.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return urn.URN{}, err
	}
	return v.(urn.URN), nil
}

func (c *Converter) fetch(ctx context.Context, activityID string) (urn.URN, error) {
	reqURL := fmt.Sprintf(c.singlePostURLFmt, activityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return urn.URN{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	req.Header.Set("accept", "application/vnd.linkedin.normalized+json+2.1")
	req.Header.Set("x-restli-protocol-version", "2.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return urn.URN{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return urn.URN{}, fmt.Errorf("%w: status %d", ErrConversionFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return urn.URN{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	var envelope struct {
		Data struct {
			UpdateMetadata struct {
				URN string `json:"urn"`
			} `json:"updateMetadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return urn.URN{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	resolved, err := urn.Parse(envelope.Data.UpdateMetadata.URN)
	if err != nil || resolved.Kind != urn.KindUGCPost {
		return urn.URN{}, fmt.Errorf("%w: no ugcPost urn in response", ErrConversionFailed)
	}
	return resolved, nil
}
