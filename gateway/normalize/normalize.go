// Package normalize unwraps LinkedIn's sideloaded GraphQL envelopes
// ({"data":{"data":{<root>:...}}, "included":[...]}) into a PageResult.
// Traversal never throws on benign shape variance — every hop type-checks —
// it only reports failure when the envelope is nil or has no data.data
// object.
// Grounded on the defensive map[string]any walkers (getString/getInt64/
// findFirstString/getNestedText) used throughout the reference client's
// LinkedIn response handling.
package normalize

import (
	"strconv"
	"strings"

	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"go.uber.org/zap"
)

// PageResult is one page of normalized items plus LinkedIn's pagination hint.
type PageResult struct {
	Items           []map[string]any
	PaginationToken string
	TotalCount      *int
	RawHadError     bool
}

// expectedIncludedType maps an endpoint kind to the $type substring its
// items must contain in the "included" array.
var expectedIncludedType = map[urlbuilder.EndpointKind]string{
	urlbuilder.KindPostComments:    "social.Comment",
	urlbuilder.KindPostReactions:   "social.Reaction",
	urlbuilder.KindProfilePosts:    "feed.Update",
	urlbuilder.KindProfileComments: "feed.Update",
	urlbuilder.KindFeed:            "feed.Update",
}

// requiredFields lists the projection keys an item must have a non-empty
// value for; items missing any of these are dropped with a warning log.
// Optional fields are kept absent rather than dropping the item.
var requiredFields = map[urlbuilder.EndpointKind][]string{
	urlbuilder.KindPostComments:    {"actor_id", "comment_text"},
	urlbuilder.KindPostReactions:   {"actor_id", "reaction_kind"},
	urlbuilder.KindProfilePosts:    {"urn"},
	urlbuilder.KindProfileComments: {"actor_id", "comment_text"},
	urlbuilder.KindFeed:            {"urn"},
}

// Parse normalizes a single LinkedIn GraphQL response envelope for the given
// endpoint kind.
func Parse(envelope map[string]any, kind urlbuilder.EndpointKind, logger *zap.Logger) *PageResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	if envelope == nil {
		return &PageResult{RawHadError: true}
	}

	root, ok := dataRoot(envelope)
	if !ok {
		return &PageResult{RawHadError: true}
	}

	result := &PageResult{}
	if token := getString(root, "metadata", "paginationToken"); token != "" {
		result.PaginationToken = token
	}
	if total, ok := getInt(root, "paging", "total"); ok {
		result.TotalCount = &total
	}

	included := includedByType(envelope, expectedIncludedType[kind])

	var items []map[string]any
	if kind == urlbuilder.KindProfileComments {
		items = parseSideloadedComments(envelope, root, logger)
	} else {
		for _, inc := range included {
			if proj, ok := project(kind, inc); ok {
				items = append(items, proj)
			} else {
				logger.Warn("dropping item missing required projection field",
					zap.String("endpoint_kind", string(kind)))
			}
		}
	}

	result.Items = items
	return result
}

// dataRoot defensively walks envelope["data"]["data"], returning it as a map
// if every hop type-checks.
func dataRoot(envelope map[string]any) (map[string]any, bool) {
	lvl1, ok := envelope["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	lvl2, ok := lvl1["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	return lvl2, true
}

// includedByType returns every element of envelope["included"] whose $type
// contains typeSubstr. Elements of other types, or a missing/malformed
// "included" array, are silently ignored.
func includedByType(envelope map[string]any, typeSubstr string) []map[string]any {
	if typeSubstr == "" {
		return nil
	}
	raw, ok := envelope["included"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t := getString(m, "$type")
		if strings.Contains(t, typeSubstr) {
			out = append(out, m)
		}
	}
	return out
}

// parseSideloadedComments builds lookup maps from "included" keyed by
// entityUrn / urn / update-entity-urn, then joins root.elements against
// them by URN and keeps only items whose header text contains
// "commented on" (a top-level comment); replies ("replied to") and items
// with neither phrase are dropped.
func parseSideloadedComments(envelope, root map[string]any, logger *zap.Logger) []map[string]any {
	raw, _ := envelope["included"].([]any)

	byEntityURN := map[string]map[string]any{}
	byURN := map[string]map[string]any{}
	byUpdateEntityURN := map[string]map[string]any{}

	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if u := getString(m, "entityUrn"); u != "" {
			byEntityURN[u] = m
		}
		if u := getString(m, "urn"); u != "" {
			byURN[u] = m
		}
		if u := getString(m, "updateMetadata", "urn"); u != "" {
			byUpdateEntityURN[u] = m
		}
	}

	elements, _ := root["elements"].([]any)

	var items []map[string]any
	for _, el := range elements {
		ref, ok := el.(map[string]any)
		if !ok {
			continue
		}
		u := getString(ref, "*comment")
		if u == "" {
			u = getString(ref, "entityUrn")
		}

		joined := byEntityURN[u]
		if joined == nil {
			joined = byURN[u]
		}
		if joined == nil {
			joined = byUpdateEntityURN[u]
		}
		if joined == nil {
			joined = ref
		}

		header := findFirstString(joined, "commentaryV2", "text")
		if header == "" {
			header = findFirstString(joined, "header", "text")
		}
		if !strings.Contains(header, "commented on") {
			continue // a reply ("replied to") or not a comment at all
		}

		proj, ok := project(urlbuilder.KindProfileComments, joined)
		if !ok {
			logger.Warn("dropping sideloaded comment missing required projection field")
			continue
		}
		items = append(items, proj)
	}
	return items
}

// project extracts the endpoint-specific projection from a single included
// item. It returns ok=false if any required field is missing/empty; optional
// fields that are missing are simply absent from the result map.
func project(kind urlbuilder.EndpointKind, item map[string]any) (map[string]any, bool) {
	proj := map[string]any{
		"urn":            getString(item, "entityUrn"),
		"actor_id":       actorID(item),
		"actor_name":     findFirstString(item, "actor", "name", "text"),
		"headline":       findFirstString(item, "actor", "description", "text"),
		"degree":         findFirstString(item, "actor", "supplementaryActorInfo", "text"),
		"comment_text":   findFirstString(item, "commentary", "text"),
		"reaction_kind":  getString(item, "reactionType"),
		"created_at_ms":  getNumber(item, "createdAt"),
	}
	if proj["comment_text"] == "" {
		if t := findFirstString(item, "commentaryV2", "text"); t != "" {
			proj["comment_text"] = t
		}
	}

	for _, field := range requiredFields[kind] {
		v, present := proj[field]
		if !present {
			return nil, false
		}
		switch vv := v.(type) {
		case string:
			if vv == "" {
				return nil, false
			}
		}
	}
	return dropEmptyOptional(proj), true
}

// dropEmptyOptional removes keys whose value is an empty string so optional,
// absent fields don't clutter the projection.
func dropEmptyOptional(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func actorID(item map[string]any) string {
	if id := findFirstString(item, "actor", "urn"); id != "" {
		return id
	}
	return findFirstString(item, "actor", "entityUrn")
}

// getString returns the string at the given path, or "" if any hop is
// absent or of the wrong type.
func getString(m map[string]any, path ...string) string {
	v := getPath(m, path...)
	s, _ := v.(string)
	return s
}

// getInt returns the int at the given path and whether it was present and
// numeric; LinkedIn's JSON numbers decode as float64.
func getInt(m map[string]any, path ...string) (int, bool) {
	v := getPath(m, path...)
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func getNumber(m map[string]any, path ...string) string {
	v := getPath(m, path...)
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	}
	return ""
}

// getPath walks m following path, type-checking every intermediate hop, and
// returns nil the moment any hop is missing or not a map.
func getPath(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = asMap[key]
	}
	return cur
}

// findFirstString walks path exactly like getString; kept as a distinct name
// because call sites read more clearly when the helper communicates "find a
// leaf string at this known path" versus a plain lookup.
func findFirstString(m map[string]any, path ...string) string {
	return getString(m, path...)
}
