package gatewayconfig

import (
	"testing"

	"github.com/linkedingateway/gateway/gateway/urlbuilder"
)

func TestLoadQueryIDsDefaults(t *testing.T) {
	ids, err := LoadQueryIDs("")
	if err != nil {
		t.Fatalf("LoadQueryIDs: %v", err)
	}
	for _, kind := range []urlbuilder.EndpointKind{
		urlbuilder.KindPostComments,
		urlbuilder.KindPostReactions,
		urlbuilder.KindProfileComments,
		urlbuilder.KindProfilePosts,
		urlbuilder.KindFeed,
	} {
		if ids[kind] == "" {
			t.Errorf("missing default query id for %q", kind)
		}
	}
}

func TestLoadQueryIDsAppliesOverrides(t *testing.T) {
	ids, err := LoadQueryIDs(`{"post_comments":"voyagerSocialDashComments.customhash"}`)
	if err != nil {
		t.Fatalf("LoadQueryIDs: %v", err)
	}
	if ids[urlbuilder.KindPostComments] != "voyagerSocialDashComments.customhash" {
		t.Errorf("post_comments = %q, want override applied", ids[urlbuilder.KindPostComments])
	}
	if ids[urlbuilder.KindFeed] == "" {
		t.Errorf("expected non-overridden kinds to keep their default")
	}
}

func TestLoadQueryIDsInvalidOverridesJSON(t *testing.T) {
	if _, err := LoadQueryIDs("not json"); err == nil {
		t.Fatal("expected an error for malformed overrides JSON")
	}
}
