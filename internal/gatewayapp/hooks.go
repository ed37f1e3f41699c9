package gatewayapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/app"
	"github.com/linkedingateway/gateway/auth/apikey"
	"github.com/linkedingateway/gateway/config"
	"github.com/linkedingateway/gateway/gateway/authstatus"
	"github.com/linkedingateway/gateway/gateway/restapi"
	"github.com/linkedingateway/gateway/metrics"
	"github.com/linkedingateway/gateway/middleware"
	"github.com/linkedingateway/gateway/pantry/health"
	"github.com/linkedingateway/gateway/pantry/ratelimit"
	"github.com/linkedingateway/gateway/pantry/version"
	"github.com/linkedingateway/gateway/router"
)

const minExtensionVersion = "1.0.0"

// apiKeyOrIPKeyFunc rate-limits by the presented API key when one is given
// (so one browser extension instance can't starve another sharing the same
// NAT), falling back to the client IP for unauthenticated requests.
func apiKeyOrIPKeyFunc(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	return "ip:" + ratelimit.IPKeyFunc(r)
}

// BuildHandler assembles the chi router: WAFFLE's standard middleware
// stack, CORS, the WebSocket upgrade endpoint, the Public REST Surface, and
// the LinkedIn OAuth config-status probe.
func BuildHandler(core *config.CoreConfig, appCfg Config, deps Deps, logger *zap.Logger) (http.Handler, error) {
	r := router.New(core, logger)
	r.Use(middleware.CORSFromConfig(core))

	// Liveness per spec: unconditional {"status":"ok"}, no dependency checks.
	health.Mount(r, nil, logger)

	metricsHandler := metrics.Handler()
	if key := appCfg.MetricsKey; key != "" {
		metricsHandler = apikey.Require(key, apikey.Options{Realm: "linkedin-gateway-metrics"}, logger)(metricsHandler)
	}
	r.Handle("/metrics", metricsHandler)

	r.Group(func(rr chi.Router) {
		rr.Use(ratelimit.Middleware(ratelimit.Config{
			Rate:    float64(appCfg.RateLimitRPS),
			Burst:   appCfg.RateLimitBurst,
			KeyFunc: apiKeyOrIPKeyFunc,
		}))
		api := &restapi.API{
			Registry:        deps.Registry,
			Builder:         deps.Builder,
			Orchestrator:    deps.Orchestrator,
			Router:          deps.Router,
			ProfileResolver: deps.ProfileResolver,
			DefaultPageSize: appCfg.DefaultPageSize,
			Logger:          logger,
			Info: restapi.ServerInfo{
				Version:             version.Version,
				MinExtensionVersion: minExtensionVersion,
				Edition:             appCfg.ServerEdition,
				Channel:             appCfg.ServerChannel,
				ServerName:          appCfg.ServerName,
				IsDefaultServer:     appCfg.ServerEdition == "community" || appCfg.ServerEdition == "core",
			},
		}
		api.Mount(rr)
	})

	r.Get("/ws/{userID}", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Router.Accept(w, req); err != nil {
			logger.Info("websocket session ended", zap.Error(err))
		}
	})
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Router.Accept(w, req); err != nil {
			logger.Info("websocket session ended", zap.Error(err))
		}
	})

	authHandler := authstatus.New(appCfg.IsLinkedInOAuthConfigured())
	r.Get("/auth/linkedin/config-status", authHandler.ServeHTTP)

	return r, nil
}

// OnReady logs readiness; there is no background worker pool to start.
func OnReady(core *config.CoreConfig, appCfg Config, deps Deps, logger *zap.Logger) {
	logger.Info("gateway ready",
		zap.String("edition", appCfg.ServerEdition),
		zap.String("server_name", appCfg.ServerName),
	)
}

// Hooks wires the gateway into WAFFLE's app.Run lifecycle.
var Hooks = app.Hooks[Config, Deps]{
	Name:           "linkedin-gateway",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema,
	BuildHandler:   BuildHandler,
	OnReady:        OnReady,
	Shutdown:       Shutdown,
}
