package urlbuilder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linkedingateway/gateway/gateway/urn"
)

var errConversionFailed = errors.New("conversion failed")

func testQueryIDs() QueryIDs {
	return QueryIDs{
		KindPostComments:    "voyagerSocialDashComments.abc",
		KindPostReactions:   "voyagerSocialDashReactions.def",
		KindProfileComments: "voyagerSocialDashProfileComments.ghi",
		KindProfilePosts:    "voyagerSocialDashProfilePosts.jkl",
		KindFeed:            "voyagerFeedDashMain.mno",
	}
}

func TestBuildFeedURL(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), nil, nil)
	got, err := b.Build(context.Background(), Params{Kind: KindFeed, Start: 10, PageSize: 20})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "https://www.linkedin.com/voyager/api/graphql?variables=(count:20,startIndex:10)&queryId=voyagerFeedDashMain.mno"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildPostCommentsURLEncodesURNAndIncludesSortOrderOnce(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), nil, nil)
	anchor := urn.URN{Kind: urn.KindUGCPost, ID: "7280000000000000000"}
	got, err := b.Build(context.Background(), Params{
		Kind:     KindPostComments,
		PageSize: 10,
		Anchor:   &anchor,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := strings.Count(got, "sortOrder:RELEVANCE"); n != 1 {
		t.Errorf("sortOrder:RELEVANCE appears %d times, want exactly 1", n)
	}
	if !strings.Contains(got, "socialDetailUrn:urn%3Ali%3AugcPost%3A7280000000000000000") {
		t.Errorf("got %q, missing expected encoded socialDetailUrn", got)
	}
	if !strings.Contains(got, "numReplies:1") {
		t.Errorf("got %q, missing numReplies:1", got)
	}
}

func TestBuildPostReactionsURLIncludesWebMetadataAndEncodesThreadURN(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), nil, nil)
	anchor := urn.URN{Kind: urn.KindUGCPost, ID: "7280000000000000000"}
	got, err := b.Build(context.Background(), Params{
		Kind:     KindPostReactions,
		PageSize: 10,
		Anchor:   &anchor,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(got, "https://www.linkedin.com/voyager/api/graphql?includeWebMetadata=true&variables=(") {
		t.Errorf("got %q, want includeWebMetadata=true prefix", got)
	}
	if !strings.Contains(got, "threadUrn:urn%3Ali%3AugcPost%3A7280000000000000000") {
		t.Errorf("got %q, missing expected encoded threadUrn", got)
	}
}

func TestBuildProfilePostsURLUsesFsdProfileURN(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), nil, nil)
	got, err := b.Build(context.Background(), Params{
		Kind:      KindProfilePosts,
		PageSize:  10,
		ProfileID: "ACoAABkVEvg",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "profileUrn:urn%3Ali%3Afsd_profile%3AACoAABkVEvg") {
		t.Errorf("got %q, missing expected encoded profileUrn", got)
	}
}

func TestBuildProfileCommentsURLAppendsPaginationToken(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), nil, nil)
	got, err := b.Build(context.Background(), Params{
		Kind:            KindProfileComments,
		PageSize:        10,
		ProfileID:       "ACoAABkVEvg",
		PaginationToken: "abc=123",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "paginationToken:abc%3D123") {
		t.Errorf("got %q, missing encoded pagination token", got)
	}
}

func TestBuildProfileEndpointsRequireProfileID(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), nil, nil)
	if _, err := b.Build(context.Background(), Params{Kind: KindProfilePosts, PageSize: 10}); err == nil {
		t.Fatal("expected an error when ProfileID is empty")
	}
}

func TestBuildUnknownQueryIDKind(t *testing.T) {
	b := New("https://www.linkedin.com/voyager/api/graphql", QueryIDs{}, nil, nil)
	if _, err := b.Build(context.Background(), Params{Kind: KindFeed, PageSize: 10}); err == nil {
		t.Fatal("expected an error when no query id is configured for the kind")
	}
}

// stubResolver lets the post_comments/post_reactions tests exercise the URN
// conversion hook without the real urnconv package's HTTP lookup.
type stubResolver struct {
	resolved urn.URN
	err      error
}

func (s stubResolver) ResolveActivityToUGCPost(ctx context.Context, activityID string) (urn.URN, error) {
	return s.resolved, s.err
}

func TestBuildPostCommentsResolvesActivityURNViaResolver(t *testing.T) {
	resolver := stubResolver{resolved: urn.URN{Kind: urn.KindUGCPost, ID: "9999999999999999999"}}
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), resolver, nil)
	anchor := urn.URN{Kind: urn.KindActivity, ID: "7280000000000000001"}
	got, err := b.Build(context.Background(), Params{
		Kind:     KindPostComments,
		PageSize: 10,
		Anchor:   &anchor,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "socialDetailUrn:urn%3Ali%3AugcPost%3A9999999999999999999") {
		t.Errorf("got %q, want the resolved ugcPost urn substituted in", got)
	}
}

func TestBuildPostCommentsFallsBackToActivityURNOnConversionFailure(t *testing.T) {
	resolver := stubResolver{err: errConversionFailed}
	b := New("https://www.linkedin.com/voyager/api/graphql", testQueryIDs(), resolver, nil)
	anchor := urn.URN{Kind: urn.KindActivity, ID: "7280000000000000001"}
	got, err := b.Build(context.Background(), Params{
		Kind:     KindPostComments,
		PageSize: 10,
		Anchor:   &anchor,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "socialDetailUrn:urn%3Ali%3Aactivity%3A7280000000000000001") {
		t.Errorf("got %q, want a fallback to the original activity urn", got)
	}
}
