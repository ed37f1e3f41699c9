// Package profileresolve resolves the public identifier a LinkedIn profile
// URL embeds in its "/in/<identifier>/" path segment (e.g. "janedoe") to the
// opaque profile id ("ACoAABkVEvg...") the GraphQL profileUrn parameter
// actually expects. An identifier that already carries LinkedIn's opaque-id
// shape is returned unchanged, with no network round trip. Resolutions are
// cached for the process lifetime and concurrent misses for the same
// identifier collapse into a single inflight request, the same singleflight
// pattern gateway/urnconv uses for activity-id lookups, since a public
// identifier's member never changes.
package profileresolve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/urn"
	"golang.org/x/sync/singleflight"
)

// ErrResolutionFailed is returned (wrapped) when the member-identity lookup
// fails or the response doesn't contain a recognizable fsd_profile urn.
var ErrResolutionFailed = fmt.Errorf("profileresolve: resolution failed")

// opaquePrefix is the fixed prefix every LinkedIn-issued opaque profile id
// begins with. A "/in/<identifier>" that already carries it is already the
// id the GraphQL API expects and is returned as-is.
const opaquePrefix = "ACoAA"

// defaultProfileURLTemplate is LinkedIn's member-identity GraphQL query; %s
// is the public identifier (vanity name).
const defaultProfileURLTemplate = "https://www.linkedin.com/voyager/api/graphql?includeWebMetadata=true&variables=(memberIdentity:{publicIdentifier:%s})&queryId=voyagerIdentityDashProfiles.memberIdentity"

// IsOpaqueID reports whether id already has LinkedIn's opaque profile-id
// shape, meaning it can be used directly without a lookup.
func IsOpaqueID(id string) bool {
	return strings.HasPrefix(id, opaquePrefix)
}

// Resolver caches publicIdentifier -> opaque profile id resolutions.
type Resolver struct {
	httpClient       *http.Client
	profileURLFormat string
	group            singleflight.Group

	mu    sync.RWMutex
	cache map[string]string
}

// Option configures a Resolver at construction time.
type Option func(*Resolver)

// WithProfileURLTemplate overrides the member-identity endpoint template
// (tests point this at an httptest.Server).
func WithProfileURLTemplate(format string) Option {
	return func(r *Resolver) { r.profileURLFormat = format }
}

// New constructs a Resolver using the given HTTP client (nil selects a
// client with a 15s timeout).
func New(httpClient *http.Client, opts ...Option) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	r := &Resolver{
		httpClient:       httpClient,
		profileURLFormat: defaultProfileURLTemplate,
		cache:            make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveProfileID resolves publicIdentifier to its opaque profile id,
// serving from cache when possible and collapsing concurrent misses for the
// same identifier into one outstanding HTTP call. An identifier that already
// looks opaque is returned unchanged without using creds at all.
func (r *Resolver) ResolveProfileID(ctx context.Context, publicIdentifier string, creds credentials.Credentials) (string, error) {
	if IsOpaqueID(publicIdentifier) {
		return publicIdentifier, nil
	}

	r.mu.RLock()
	cached, ok := r.cache[publicIdentifier]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := r.group.Do(publicIdentifier, func() (any, error) {
		resolved, err := r.fetch(ctx, publicIdentifier, creds)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.cache[publicIdentifier] = resolved
		r.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) fetch(ctx context.Context, publicIdentifier string, creds credentials.Credentials) (string, error) {
	reqURL := fmt.Sprintf(r.profileURLFormat, publicIdentifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	req.Header.Set("accept", "application/vnd.linkedin.normalized+json+2.1")
	req.Header.Set("x-restli-protocol-version", "2.0.0")
	req.Header.Set("csrf-token", creds.CSRFToken)
	req.Header.Set("cookie", cookieHeader(creds.Cookies))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrResolutionFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	var envelope struct {
		Included []struct {
			Type             string `json:"$type"`
			PublicIdentifier string `json:"publicIdentifier"`
			EntityURN        string `json:"entityUrn"`
		} `json:"included"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	for _, item := range envelope.Included {
		if item.PublicIdentifier != publicIdentifier || item.EntityURN == "" {
			continue
		}
		resolved, err := urn.Parse(item.EntityURN)
		if err != nil || resolved.Kind != urn.KindFSDProfile {
			continue
		}
		return resolved.ID, nil
	}

	return "", fmt.Errorf("%w: no fsd_profile urn for %q in response", ErrResolutionFailed, publicIdentifier)
}

// cookieHeader assembles a deterministic "name=value; ..." header, sorted by
// cookie name, matching directclient's cookie-header assembly convention.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
