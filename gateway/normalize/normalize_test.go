package normalize

import (
	"testing"

	"github.com/linkedingateway/gateway/gateway/urlbuilder"
)

func TestParseFeedExtractsItemsAndPaginationToken(t *testing.T) {
	envelope := map[string]any{
		"data": map[string]any{
			"data": map[string]any{
				"metadata": map[string]any{"paginationToken": "tok-1"},
			},
		},
		"included": []any{
			map[string]any{
				"$type":     "com.linkedin.voyager.feed.render.feed.Update",
				"entityUrn": "urn:li:activity:1",
				"actor":     map[string]any{"urn": "urn:li:member:1", "name": map[string]any{"text": "Jane Doe"}},
				"createdAt": float64(1000),
			},
		},
	}

	res := Parse(envelope, urlbuilder.KindFeed, nil)
	if res.RawHadError {
		t.Fatal("unexpected RawHadError")
	}
	if res.PaginationToken != "tok-1" {
		t.Errorf("PaginationToken = %q, want tok-1", res.PaginationToken)
	}
	if len(res.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(res.Items))
	}
	if res.Items[0]["urn"] != "urn:li:activity:1" {
		t.Errorf("urn = %v, want urn:li:activity:1", res.Items[0]["urn"])
	}
	if res.Items[0]["actor_name"] != "Jane Doe" {
		t.Errorf("actor_name = %v, want Jane Doe", res.Items[0]["actor_name"])
	}
}

func TestParseDropsItemsMissingRequiredField(t *testing.T) {
	envelope := map[string]any{
		"data": map[string]any{"data": map[string]any{}},
		"included": []any{
			map[string]any{
				"$type": "com.linkedin.voyager.feed.render.feed.Update",
				// no entityUrn -> "urn" required field missing
			},
		},
	}
	res := Parse(envelope, urlbuilder.KindFeed, nil)
	if len(res.Items) != 0 {
		t.Fatalf("len(Items) = %d, want 0", len(res.Items))
	}
}

func TestParseMalformedEnvelopeReturnsRawHadError(t *testing.T) {
	res := Parse(map[string]any{"nope": true}, urlbuilder.KindFeed, nil)
	if !res.RawHadError {
		t.Fatal("expected RawHadError for a malformed envelope")
	}
}

func TestParseNilEnvelopeReturnsRawHadError(t *testing.T) {
	res := Parse(nil, urlbuilder.KindFeed, nil)
	if !res.RawHadError {
		t.Fatal("expected RawHadError for a nil envelope")
	}
}

func TestParsePostCommentsKeepsActorAndCommentText(t *testing.T) {
	envelope := map[string]any{
		"data": map[string]any{"data": map[string]any{}},
		"included": []any{
			map[string]any{
				"$type":      "com.linkedin.voyager.social.Comment",
				"entityUrn":  "urn:li:comment:1",
				"actor":      map[string]any{"urn": "urn:li:member:2"},
				"commentary": map[string]any{"text": "nice post"},
			},
		},
	}
	res := Parse(envelope, urlbuilder.KindPostComments, nil)
	if len(res.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(res.Items))
	}
	if res.Items[0]["comment_text"] != "nice post" {
		t.Errorf("comment_text = %v, want %q", res.Items[0]["comment_text"], "nice post")
	}
	if res.Items[0]["actor_id"] != "urn:li:member:2" {
		t.Errorf("actor_id = %v, want urn:li:member:2", res.Items[0]["actor_id"])
	}
}

func TestParseProfileCommentsJoinsSideloadedCommentsAndDropsReplies(t *testing.T) {
	envelope := map[string]any{
		"data": map[string]any{
			"data": map[string]any{
				"elements": []any{
					map[string]any{"*comment": "urn:li:comment:top"},
					map[string]any{"*comment": "urn:li:comment:reply"},
				},
			},
		},
		"included": []any{
			map[string]any{
				"entityUrn":  "urn:li:comment:top",
				"actor":      map[string]any{"urn": "urn:li:member:1"},
				"commentary": map[string]any{"text": "great point"},
				"header":     map[string]any{"text": "Jane Doe commented on a post"},
			},
			map[string]any{
				"entityUrn":  "urn:li:comment:reply",
				"actor":      map[string]any{"urn": "urn:li:member:2"},
				"commentary": map[string]any{"text": "totally agree"},
				"header":     map[string]any{"text": "John Smith replied to a comment"},
			},
		},
	}
	res := Parse(envelope, urlbuilder.KindProfileComments, nil)
	if len(res.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1 (reply should be dropped)", len(res.Items))
	}
	if res.Items[0]["comment_text"] != "great point" {
		t.Errorf("comment_text = %v, want %q", res.Items[0]["comment_text"], "great point")
	}
}
