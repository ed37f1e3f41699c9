package restapi

import (
	"regexp"
	"strings"

	"github.com/linkedingateway/gateway/gateway/gwerrors"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/urn"
)

const (
	minCount = 1
	maxCount = 10000

	minDelayFloor   = 0.0
	maxMinDelay     = 30.0
	minMaxDelayCeil = 0.0
	maxMaxDelay     = 60.0

	defaultMinDelaySeconds = 2.0
	defaultMaxDelaySeconds = 5.0
)

// fetchRequest is the common shape of every fetch-style endpoint body: the
// per-endpoint anchor (post_url/profile_url) is bound separately by each
// handler.
type fetchRequest struct {
	APIKey     string   `json:"api_key,omitempty"`
	Count      *int     `json:"count,omitempty"`
	ServerCall bool     `json:"server_call,omitempty"`
	MinDelay   *float64 `json:"min_delay,omitempty"`
	MaxDelay   *float64 `json:"max_delay,omitempty"`
}

type postRequest struct {
	fetchRequest
	PostURL string `json:"post_url"`
}

type profileRequest struct {
	fetchRequest
	ProfileURL string `json:"profile_url"`
}

// resolved holds a fetchRequest's fields after validation and default
// substitution, ready to feed into an orchestrator.FetchPlan.
type resolved struct {
	Count      int
	ServerCall bool
	MinDelay   float64
	MaxDelay   float64
}

func (f fetchRequest) resolve(defaultPageSize int) (resolved, *gwerrors.Error) {
	count := defaultPageSize
	if f.Count != nil {
		count = *f.Count
	}
	if count != -1 && (count < minCount || count > maxCount) {
		return resolved{}, gwerrors.ValidationFailed("count must be -1 or between 1 and 10000")
	}

	minDelay := defaultMinDelaySeconds
	if f.MinDelay != nil {
		minDelay = *f.MinDelay
	}
	maxDelay := defaultMaxDelaySeconds
	if f.MaxDelay != nil {
		maxDelay = *f.MaxDelay
	}
	if minDelay < minDelayFloor || minDelay > maxMinDelay {
		return resolved{}, gwerrors.ValidationFailed("min_delay must be between 0 and 30")
	}
	if maxDelay < minMaxDelayCeil || maxDelay > maxMaxDelay {
		return resolved{}, gwerrors.ValidationFailed("max_delay must be between 0 and 60")
	}
	if maxDelay < minDelay {
		return resolved{}, gwerrors.ValidationFailed("max_delay must be >= min_delay")
	}

	return resolved{Count: count, ServerCall: f.ServerCall, MinDelay: minDelay, MaxDelay: maxDelay}, nil
}

// effectiveAPIKey applies the precedence rule: the JSON body's api_key
// field wins over the X-API-Key header when both are present.
func effectiveAPIKey(bodyKey, headerKey string) string {
	if strings.TrimSpace(bodyKey) != "" {
		return bodyKey
	}
	return headerKey
}

func parsePostAnchor(rawURL string) (urn.URN, *gwerrors.Error) {
	if strings.TrimSpace(rawURL) == "" {
		return urn.URN{}, gwerrors.ValidationFailed("post_url is required")
	}
	u, err := urn.ParsePostOrUGCURL(rawURL)
	if err != nil {
		return urn.URN{}, gwerrors.ParseError("post_url could not be parsed into an activity or ugcPost urn")
	}
	return u, nil
}

// profileInPathPattern extracts the public identifier LinkedIn embeds in a
// profile URL's "/in/<identifier>/" path segment. This may already be the
// opaque id the GraphQL profileUrn parameter expects, or a vanity name
// (e.g. "janedoe") that the caller must resolve via profileresolve before
// it can be used as a urlbuilder.Params.ProfileID.
var profileInPathPattern = regexp.MustCompile(`/in/([^/?#]+)`)

func parseProfileID(rawURL string) (string, *gwerrors.Error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", gwerrors.ValidationFailed("profile_url is required")
	}
	m := profileInPathPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", gwerrors.ParseError("profile_url does not contain a recognizable /in/<id> segment")
	}
	return m[1], nil
}

// endpointKindFor returns the string form of a urlbuilder.EndpointKind.
func endpointKindFor(kind urlbuilder.EndpointKind) string { return string(kind) }
