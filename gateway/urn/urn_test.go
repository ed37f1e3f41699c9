package urn

import "testing"

func TestParseBareURN(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    URN
		wantErr bool
	}{
		{"activity", "urn:li:activity:7123456789", URN{Kind: KindActivity, ID: "7123456789"}, false},
		{"ugcPost", "urn:li:ugcPost:7123456789", URN{Kind: KindUGCPost, ID: "7123456789"}, false},
		{"profile", "urn:li:fsd_profile:ACoAAA", URN{Kind: KindFSDProfile, ID: "ACoAAA"}, false},
		{"with whitespace", "  urn:li:activity:1  ", URN{Kind: KindActivity, ID: "1"}, false},
		{"not a urn", "https://linkedin.com/feed/update/activity:1", URN{}, true},
		{"empty", "", URN{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestURNString(t *testing.T) {
	u := URN{Kind: KindActivity, ID: "42"}
	if got := u.String(); got != "urn:li:activity:42" {
		t.Errorf("String() = %q", got)
	}
}

func TestParsePostURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr bool
	}{
		{"bare urn", "urn:li:activity:111", "111", false},
		{"colon path segment", "https://www.linkedin.com/feed/update/urn:li:activity:222/", "222", false},
		{"dash path segment", "https://www.linkedin.com/posts/someone_activity-333-abcd", "333", false},
		{"ugcPost bare urn rejected", "urn:li:ugcPost:444", "", true},
		{"garbage", "not a url at all", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePostURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePostURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr {
				if got.Kind != KindActivity || got.ID != tt.wantID {
					t.Errorf("ParsePostURL(%q) = %+v, want id %q", tt.input, got, tt.wantID)
				}
			}
		})
	}
}

func TestParsePostOrUGCURL(t *testing.T) {
	u, err := ParsePostOrUGCURL("urn:li:ugcPost:555")
	if err != nil {
		t.Fatalf("ParsePostOrUGCURL: %v", err)
	}
	if u.Kind != KindUGCPost || u.ID != "555" {
		t.Errorf("got %+v", u)
	}

	u, err = ParsePostOrUGCURL("https://www.linkedin.com/feed/update/urn:li:activity:666/")
	if err != nil {
		t.Fatalf("ParsePostOrUGCURL: %v", err)
	}
	if u.Kind != KindActivity || u.ID != "666" {
		t.Errorf("got %+v", u)
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("garbage")
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}
