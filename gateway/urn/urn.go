// Package urn handles LinkedIn's urn:li:<kind>:<id> identifier scheme:
// parsing, canonicalization, and extraction from post URLs.
package urn

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind enumerates the URN kinds this gateway understands.
type Kind string

const (
	KindActivity         Kind = "activity"
	KindUGCPost          Kind = "ugcPost"
	KindFSDProfile       Kind = "fsd_profile"
	KindFSDSocialDetail  Kind = "fsd_socialDetail"
	KindHighlightedReply Kind = "highlightedReply"
)

// URN is a parsed urn:li:<kind>:<id> identifier.
type URN struct {
	Kind Kind
	ID   string
}

// String renders the canonical urn:li:<kind>:<id> form.
func (u URN) String() string {
	return fmt.Sprintf("urn:li:%s:%s", u.Kind, u.ID)
}

// ParseError signals an unrecognized or malformed URN/URL shape.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("urn: could not parse %q", e.Input)
}

var bareURNPattern = regexp.MustCompile(`^urn:li:([A-Za-z_]+):(.+)$`)

// Parse parses a bare "urn:li:<kind>:<id>" string.
func Parse(s string) (URN, error) {
	m := bareURNPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return URN{}, &ParseError{Input: s}
	}
	return URN{Kind: Kind(m[1]), ID: m[2]}, nil
}

// activityPathPattern matches "activity:<id>" or "activity-<id>" path segments,
// which LinkedIn post URLs embed in several different shapes.
var activityPathPattern = regexp.MustCompile(`activity[:-](\d+)`)

// ParsePostURL extracts an activity URN from any LinkedIn post URL form:
// a bare "urn:li:activity:<id>", a path segment "activity:<id>", or
// "activity-<id>". Returns the canonicalized "urn:li:activity:<id>" form.
func ParsePostURL(raw string) (URN, error) {
	raw = strings.TrimSpace(raw)

	if u, err := Parse(raw); err == nil && u.Kind == KindActivity {
		return u, nil
	}

	if m := activityPathPattern.FindStringSubmatch(raw); m != nil {
		return URN{Kind: KindActivity, ID: m[1]}, nil
	}

	return URN{}, &ParseError{Input: raw}
}

// ParsePostOrUGCURL extracts either an activity or a ugcPost URN from a post
// reference, accepting a bare URN of either kind in addition to the URL forms
// ParsePostURL understands.
func ParsePostOrUGCURL(raw string) (URN, error) {
	raw = strings.TrimSpace(raw)
	if u, err := Parse(raw); err == nil && (u.Kind == KindActivity || u.Kind == KindUGCPost) {
		return u, nil
	}
	return ParsePostURL(raw)
}
