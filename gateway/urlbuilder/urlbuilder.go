// Package urlbuilder assembles LinkedIn GraphQL URLs. The grammar is a flat
// CSV of key:value pairs wrapped in "variables=(...)"; only the content of
// individual URN/token values gets percent-encoded, never the CSV's own
// colons or commas. Grounded on the manual fmt.Sprintf tuple assembly seen
// in the LinkedIn search call of the reference client (no struct-to-
// url.Values round trip is used anywhere in this package, deliberately:
// url.Values.Encode would alphabetize keys and destroy the kind-specific
// ordering the tests assert on).
package urlbuilder

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/linkedingateway/gateway/gateway/urn"
	"go.uber.org/zap"
)

// EndpointKind selects the per-endpoint variable template.
type EndpointKind string

const (
	KindPostComments    EndpointKind = "post_comments"
	KindPostReactions   EndpointKind = "post_reactions"
	KindProfileComments EndpointKind = "profile_comments"
	KindProfilePosts    EndpointKind = "profile_posts"
	KindFeed            EndpointKind = "feed"
)

// QueryIDs maps an endpoint kind to LinkedIn's (rotating) GraphQL query ID.
// Callers load this from configuration; see gatewayconfig.LoadQueryIDs.
type QueryIDs map[EndpointKind]string

// URNResolver resolves an activity id to its ugcPost URN. Implemented by
// gateway/urnconv.Converter; tests substitute a stub.
type URNResolver interface {
	ResolveActivityToUGCPost(ctx context.Context, activityID string) (urn.URN, error)
}

// Params are the caller-supplied inputs to Build; which fields matter
// depends on Kind.
type Params struct {
	Kind            EndpointKind
	Start           int
	PageSize        int
	PaginationToken string // optional, echoed from a prior page

	// Anchor is the post being queried (post_comments, post_reactions).
	// May be an activity or ugcPost URN; Build resolves activity URNs to
	// ugcPost via Resolver before assembly, per the URN conversion hook.
	Anchor *urn.URN

	// ProfileID is the opaque LinkedIn profile id (profile_comments,
	// profile_posts). Callers resolve a profile_url's vanity name to this
	// id via gateway/profileresolve before building Params.
	ProfileID string
}

// Builder assembles GraphQL URLs for a fixed LinkedIn GraphQL base endpoint.
type Builder struct {
	BaseURL  string // e.g. "https://www.linkedin.com/voyager/api/graphql"
	QueryIDs QueryIDs
	Resolver URNResolver
	Logger   *zap.Logger
}

// New constructs a Builder. logger may be nil.
func New(baseURL string, queryIDs QueryIDs, resolver URNResolver, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{BaseURL: baseURL, QueryIDs: queryIDs, Resolver: resolver, Logger: logger}
}

type kv struct {
	key   string
	value string
}

// Build assembles the full GraphQL URL for the given parameters.
func (b *Builder) Build(ctx context.Context, p Params) (string, error) {
	queryID, ok := b.QueryIDs[p.Kind]
	if !ok {
		return "", fmt.Errorf("urlbuilder: no query id configured for kind %q", p.Kind)
	}

	var pairs []kv
	includeWebMetadata := false

	switch p.Kind {
	case KindPostComments:
		social, err := b.resolveAnchor(ctx, p.Anchor)
		if err != nil {
			return "", err
		}
		pairs = []kv{
			{"count", strconv.Itoa(p.PageSize)},
			{"numReplies", "1"},
			{"socialDetailUrn", encodeURNValue(social, true)},
			{"sortOrder", "RELEVANCE"},
			{"start", strconv.Itoa(p.Start)},
		}

	case KindPostReactions:
		thread, err := b.resolveAnchor(ctx, p.Anchor)
		if err != nil {
			return "", err
		}
		includeWebMetadata = true
		pairs = []kv{
			{"count", strconv.Itoa(p.PageSize)},
			{"start", strconv.Itoa(p.Start)},
			{"threadUrn", encodeURNValue(thread, false)},
		}

	case KindProfileComments, KindProfilePosts:
		if p.ProfileID == "" {
			return "", fmt.Errorf("urlbuilder: %s requires a profile id", p.Kind)
		}
		pairs = []kv{
			{"count", strconv.Itoa(p.PageSize)},
			{"start", strconv.Itoa(p.Start)},
			{"profileUrn", profileURNValue(p.ProfileID)},
		}
		if p.PaginationToken != "" {
			pairs = append(pairs, kv{"paginationToken", encodeOpaqueToken(p.PaginationToken)})
		}

	case KindFeed:
		pairs = []kv{
			{"count", strconv.Itoa(p.PageSize)},
			{"startIndex", strconv.Itoa(p.Start)},
		}

	default:
		return "", fmt.Errorf("urlbuilder: unknown endpoint kind %q", p.Kind)
	}

	csv := make([]string, len(pairs))
	for i, pair := range pairs {
		csv[i] = pair.key + ":" + pair.value
	}

	var sb strings.Builder
	sb.WriteString(b.BaseURL)
	sb.WriteString("?")
	if includeWebMetadata {
		sb.WriteString("includeWebMetadata=true&")
	}
	sb.WriteString("variables=(")
	sb.WriteString(strings.Join(csv, ","))
	sb.WriteString(")&queryId=")
	sb.WriteString(queryID)

	return sb.String(), nil
}

// resolveAnchor returns the post's URN as a "urn:li:<kind>:<id>" string,
// resolving an activity URN to ugcPost form when possible. A conversion
// failure is logged and the original anchor URN is used instead — some
// endpoints still accept the activity form, so this is non-fatal.
func (b *Builder) resolveAnchor(ctx context.Context, anchor *urn.URN) (string, error) {
	if anchor == nil {
		return "", fmt.Errorf("urlbuilder: missing anchor post")
	}
	if anchor.Kind != urn.KindActivity || b.Resolver == nil {
		return anchor.String(), nil
	}

	resolved, err := b.Resolver.ResolveActivityToUGCPost(ctx, anchor.ID)
	if err != nil {
		b.Logger.Warn("urn conversion failed, proceeding with activity urn",
			zap.String("activity_id", anchor.ID), zap.Error(err))
		return anchor.String(), nil
	}
	return resolved.String(), nil
}

// profileURNValue builds the percent-encoded fsd_profile URN value by
// string concatenation, per spec: never by encoding a pre-formed
// "urn:li:fsd_profile:<id>" string.
func profileURNValue(profileID string) string {
	return "urn%3Ali%3Afsd_profile%3A" + profileID
}

// encodeURNValue percent-encodes a "urn:li:<kind>:<id>" string for embedding
// inside a variables=(...) value: every ':' becomes %3A, and when
// encodeParens is set (the socialDetailUrn rule), '(' ')' ',' also become
// %28 %29 %2C. All other characters are left as-is — the safe-set is empty
// only for these specific punctuation marks, not for the whole component.
func encodeURNValue(raw string, encodeParens bool) string {
	var sb strings.Builder
	for _, r := range raw {
		switch r {
		case ':':
			sb.WriteString("%3A")
		case '(':
			if encodeParens {
				sb.WriteString("%28")
			} else {
				sb.WriteRune(r)
			}
		case ')':
			if encodeParens {
				sb.WriteString("%29")
			} else {
				sb.WriteRune(r)
			}
		case ',':
			if encodeParens {
				sb.WriteString("%2C")
			} else {
				sb.WriteRune(r)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// encodeOpaqueToken percent-encodes a pagination token with an empty
// safe-set; tokens frequently contain '=' and other reserved characters.
func encodeOpaqueToken(token string) string {
	return url.QueryEscape(token)
}
