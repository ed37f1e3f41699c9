// Package authstatus implements GET /auth/linkedin/config-status: reports
// whether LINKEDIN_CLIENT_ID/LINKEDIN_CLIENT_SECRET are set without
// exposing their values or driving any login flow.
package authstatus

import (
	"net/http"

	"github.com/linkedingateway/gateway/httputil"
)

// Handler reports LinkedIn OAuth configuration presence.
type Handler struct {
	configured bool
}

// New constructs a Handler. configured should be
// gatewayconfig.Values.IsLinkedInOAuthConfigured()'s result.
func New(configured bool) *Handler {
	return &Handler{configured: configured}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"is_configured": h.configured})
}
