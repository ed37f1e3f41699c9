package restapi

import (
	"net/http"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/gwerrors"
	"github.com/linkedingateway/gateway/gateway/orchestrator"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/urn"
	"github.com/linkedingateway/gateway/httputil"
)

// bindBody decodes the request body into v, writing a ParseError response
// and returning false on failure.
func (a *API) bindBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.BindJSON(r, v); err != nil {
		gwerrors.WriteWithLogger(w, gwerrors.ParseError(err.Error()), a.Logger)
		return false
	}
	return true
}

// envelope is the uniform response shape returned by every fetch endpoint:
// {"data": [...]}. items is never allowed to marshal as null, only as []
// or a populated array.
type envelope struct {
	Data []map[string]any `json:"data"`
}

func writeEnvelope(w http.ResponseWriter, items []map[string]any) {
	if items == nil {
		items = []map[string]any{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope{Data: items})
}

// runFetch validates req's fetch parameters, resolves direct vs proxy mode,
// builds a FetchPlan for kind and anchor/profile params, runs it, and writes
// the envelope. apiKey is the already-authenticated key. anchor is set for
// post-anchored endpoints (post_comments, post_reactions); profileID is set
// for profile-anchored endpoints (profile_posts, profile_comments).
func (a *API) runFetch(w http.ResponseWriter, r *http.Request, apiKey *credentials.APIKey, body fetchRequest, kind urlbuilder.EndpointKind, anchor *urn.URN, profileID string) {
	res, verr := body.resolve(a.DefaultPageSize)
	if verr != nil {
		gwerrors.WriteWithLogger(w, verr, a.Logger)
		return
	}

	mode, creds, ok := a.planCredentialsAndMode(w, r, apiKey, res.ServerCall)
	if !ok {
		return
	}

	if mode == orchestrator.ModeProxy && !a.Router.Connected(apiKey.OwnerUserID.String()) {
		gwerrors.WriteWithLogger(w, gwerrors.NoProxyConnection("no connected browser extension for this account"), a.Logger)
		return
	}

	plan := orchestrator.FetchPlan{
		Mode:     mode,
		UserID:   apiKey.OwnerUserID.String(),
		Endpoint: kind,
		Base: urlbuilder.Params{
			Kind:      kind,
			Anchor:    anchor,
			ProfileID: profileID,
		},
		PageSize:        a.DefaultPageSize,
		Count:           res.Count,
		DelayMinSeconds: res.MinDelay,
		DelayMaxSeconds: res.MaxDelay,
		Credentials:     creds,
	}

	items, err := a.Orchestrator.Run(r.Context(), plan)
	if err != nil {
		gwerrors.WriteWithLogger(w, gwerrors.From(err), a.Logger)
		return
	}
	writeEnvelope(w, items)
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	var body fetchRequest
	if !a.bindBody(w, r, &body) {
		return
	}
	apiKey, ok := a.authenticate(w, r, body.APIKey)
	if !ok {
		return
	}
	a.runFetch(w, r, apiKey, body, urlbuilder.KindFeed, nil, "")
}

func (a *API) handlePostComments(w http.ResponseWriter, r *http.Request) {
	a.handlePostAnchored(w, r, urlbuilder.KindPostComments)
}

func (a *API) handlePostReactions(w http.ResponseWriter, r *http.Request) {
	a.handlePostAnchored(w, r, urlbuilder.KindPostReactions)
}

func (a *API) handlePostAnchored(w http.ResponseWriter, r *http.Request, kind urlbuilder.EndpointKind) {
	var body postRequest
	if !a.bindBody(w, r, &body) {
		return
	}
	apiKey, ok := a.authenticate(w, r, body.APIKey)
	if !ok {
		return
	}
	anchor, verr := parsePostAnchor(body.PostURL)
	if verr != nil {
		gwerrors.WriteWithLogger(w, verr, a.Logger)
		return
	}
	a.runFetch(w, r, apiKey, body.fetchRequest, kind, &anchor, "")
}

func (a *API) handleProfilePosts(w http.ResponseWriter, r *http.Request) {
	a.handleProfileAnchored(w, r, urlbuilder.KindProfilePosts)
}

func (a *API) handleProfileComments(w http.ResponseWriter, r *http.Request) {
	a.handleProfileAnchored(w, r, urlbuilder.KindProfileComments)
}

func (a *API) handleProfileAnchored(w http.ResponseWriter, r *http.Request, kind urlbuilder.EndpointKind) {
	var body profileRequest
	if !a.bindBody(w, r, &body) {
		return
	}
	apiKey, ok := a.authenticate(w, r, body.APIKey)
	if !ok {
		return
	}
	identifier, verr := parseProfileID(body.ProfileURL)
	if verr != nil {
		gwerrors.WriteWithLogger(w, verr, a.Logger)
		return
	}
	profileID, verr := a.resolveProfileID(r.Context(), apiKey, identifier)
	if verr != nil {
		gwerrors.WriteWithLogger(w, verr, a.Logger)
		return
	}
	a.runFetch(w, r, apiKey, body.fetchRequest, kind, nil, profileID)
}
