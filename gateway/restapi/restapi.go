// Package restapi implements the Public REST Surface: API-key
// authentication (header or body), per-endpoint request validation,
// FetchPlan construction, and response shaping into the uniform
// {"data":[...]} envelope. Request binding follows httputil's BindJSON
// validation style; error responses go through the gwerrors package.
package restapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/gwerrors"
	"github.com/linkedingateway/gateway/gateway/orchestrator"
	"github.com/linkedingateway/gateway/gateway/profileresolve"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/wsrouter"
	"github.com/linkedingateway/gateway/httputil"
)

// ProfileResolver resolves a profile URL's public identifier (vanity name or
// already-opaque id) to the opaque profile id the URL Builder's ProfileID
// field expects. Implemented by gateway/profileresolve.Resolver; tests
// substitute a stub.
type ProfileResolver interface {
	ResolveProfileID(ctx context.Context, publicIdentifier string, creds credentials.Credentials) (string, error)
}

// ServerInfo describes the fixed, deployment-level facts GET /version and
// GET /api/v1/server/info report.
type ServerInfo struct {
	Version             string
	MinExtensionVersion string
	Edition             string // "core" | "saas" | "enterprise"
	Channel             string
	ServerName          string
	IsDefaultServer     bool
}

// API wires the REST handlers to the gateway's core components.
type API struct {
	Registry        *credentials.Registry
	Builder         *urlbuilder.Builder
	Orchestrator    *orchestrator.Orchestrator
	Router          *wsrouter.Router
	ProfileResolver ProfileResolver
	DefaultPageSize int
	Info            ServerInfo
	Logger          *zap.Logger
}

// Mount registers every Public REST Surface route onto r. GET /health is
// mounted separately by the caller via pantry/health, since liveness is an
// ambient concern rather than part of the business API.
func (a *API) Mount(r chi.Router) {
	r.Post("/posts/feed", a.handleFeed)
	r.Post("/posts/comments", a.handlePostComments)
	r.Post("/posts/reactions", a.handlePostReactions)
	r.Post("/profile/posts", a.handleProfilePosts)
	r.Post("/profile/comments", a.handleProfileComments)
	r.Get("/version", a.handleVersion)
	r.Get("/api/v1/server/info", a.handleServerInfo)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"version":               a.Info.Version,
		"min_extension_version": a.Info.MinExtensionVersion,
		"features": map[string]any{
			"multi_key_support": true,
		},
	})
}

func (a *API) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"edition":           a.Info.Edition,
		"channel":           a.Info.Channel,
		"server_name":       a.Info.ServerName,
		"version":           a.Info.Version,
		"is_default_server": a.Info.IsDefaultServer,
	})
}

// authenticate resolves the effective API key and authenticates it against
// the Credential Registry, writing an error response and returning false on
// failure.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request, bodyAPIKey string) (*credentials.APIKey, bool) {
	key := effectiveAPIKey(bodyAPIKey, r.Header.Get("X-API-Key"))
	if key == "" {
		gwerrors.WriteWithLogger(w, gwerrors.Unauthorized("missing API key"), a.Logger)
		return nil, false
	}
	apiKey, err := a.Registry.Authenticate(r.Context(), key)
	if err != nil {
		gwerrors.WriteWithLogger(w, gwerrors.Unauthorized("invalid or revoked API key"), a.Logger)
		return nil, false
	}
	return apiKey, true
}

// planCredentialsAndMode resolves the Mode/UserID/Credentials fields of a
// FetchPlan given the authenticated key and the request's server_call flag.
func (a *API) planCredentialsAndMode(w http.ResponseWriter, r *http.Request, apiKey *credentials.APIKey, serverCall bool) (orchestrator.Mode, credentials.Credentials, bool) {
	if serverCall && a.Info.Edition == "saas" {
		gwerrors.WriteWithLogger(w, gwerrors.ServerExecutionDisabled("server_call is not permitted on this edition"), a.Logger)
		return "", credentials.Credentials{}, false
	}

	if !serverCall {
		return orchestrator.ModeProxy, credentials.Credentials{}, true
	}

	creds, err := a.Registry.GetCredentials(r.Context(), apiKey.KeyID)
	if err != nil {
		gwerrors.WriteWithLogger(w, gwerrors.Unauthorized("no stored credentials for this key"), a.Logger)
		return "", credentials.Credentials{}, false
	}
	return orchestrator.ModeDirect, creds, true
}

// resolveProfileID turns a profile_url's "/in/<identifier>" segment into the
// opaque id urlbuilder.Params.ProfileID needs. An already-opaque identifier
// is returned unchanged without touching the registry. A vanity name
// requires the key's stored LinkedIn session (the same credentials a direct
// server_call uses) regardless of this request's own mode, since the
// resolution lookup always runs server-side.
func (a *API) resolveProfileID(ctx context.Context, apiKey *credentials.APIKey, publicIdentifier string) (string, *gwerrors.Error) {
	if profileresolve.IsOpaqueID(publicIdentifier) {
		return publicIdentifier, nil
	}
	if a.ProfileResolver == nil {
		return "", gwerrors.AuthStale("profile_url names a vanity identifier that requires resolution, but no profile resolver is configured")
	}

	creds, err := a.Registry.GetCredentials(ctx, apiKey.KeyID)
	if err != nil {
		return "", gwerrors.AuthStale("no stored LinkedIn session available to resolve profile_url's vanity name")
	}

	resolved, err := a.ProfileResolver.ResolveProfileID(ctx, publicIdentifier, creds)
	if err != nil {
		return "", gwerrors.UpstreamTransportError(err.Error())
	}
	return resolved, nil
}
