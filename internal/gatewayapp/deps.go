package gatewayapp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/config"
	"github.com/linkedingateway/gateway/gateway/credentials"
	"github.com/linkedingateway/gateway/gateway/directclient"
	"github.com/linkedingateway/gateway/gateway/gatewayconfig"
	"github.com/linkedingateway/gateway/gateway/orchestrator"
	"github.com/linkedingateway/gateway/gateway/profileresolve"
	"github.com/linkedingateway/gateway/gateway/urlbuilder"
	"github.com/linkedingateway/gateway/gateway/urnconv"
	"github.com/linkedingateway/gateway/gateway/wsrouter"
	"github.com/linkedingateway/gateway/pantry/audit"
	"github.com/linkedingateway/gateway/pantry/cache"
	"github.com/linkedingateway/gateway/pantry/crypto"
	"github.com/linkedingateway/gateway/pantry/db/postgres"
)

const voyagerGraphQLBaseURL = "https://www.linkedin.com/voyager/api/graphql"

// Deps bundles every connected/constructed component BuildHandler needs.
type Deps struct {
	Pool            *pgxpool.Pool
	Registry        *credentials.Registry
	Builder         *urlbuilder.Builder
	Converter       *urnconv.Converter
	ProfileResolver *profileresolve.Resolver
	Direct          *directclient.Client
	Router          *wsrouter.Router
	Orchestrator    *orchestrator.Orchestrator
	AuditLogger     *audit.AuditLogger
}

// ConnectDB opens the Postgres pool, the optional Redis credential cache,
// and constructs every component that depends on them.
func ConnectDB(ctx context.Context, core *config.CoreConfig, appCfg Config, logger *zap.Logger) (Deps, error) {
	pool, err := postgres.ConnectPool(appCfg.DatabaseURL, core.DBConnectTimeout)
	if err != nil {
		return Deps{}, fmt.Errorf("gatewayapp: connect postgres: %w", err)
	}

	var credCache *credentials.CredentialCache
	if strings.TrimSpace(appCfg.RedisURL) != "" {
		redisCache, err := newRedisCache(appCfg.RedisURL)
		if err != nil {
			pool.Close()
			return Deps{}, fmt.Errorf("gatewayapp: connect redis: %w", err)
		}
		credCache = credentials.NewCredentialCache(redisCache, appCfg.CredentialCacheTTLDuration, logger)
	}

	store := credentials.NewPostgresStore(pool)
	if strings.TrimSpace(appCfg.CredentialEncryptionKey) != "" {
		enc, err := crypto.NewEncryptorFromString(appCfg.CredentialEncryptionKey)
		if err != nil {
			pool.Close()
			return Deps{}, fmt.Errorf("gatewayapp: credential encryption key: %w", err)
		}
		store.SetEncryptor(enc)
	}
	registry := credentials.New(store, credCache, logger)

	auditLogger := audit.NewLogger(audit.Config{
		Store:       audit.NewWriterStore(os.Stdout),
		Service:     "linkedin-gateway",
		Environment: core.Env,
	})
	registry.SetAuditLogger(auditLogger)

	queryIDs, err := gatewayconfig.LoadQueryIDs(appCfg.QueryIDOverrides)
	if err != nil {
		pool.Close()
		return Deps{}, fmt.Errorf("gatewayapp: load query ids: %w", err)
	}

	converter := urnconv.New(nil)
	profileResolver := profileresolve.New(nil)
	builder := urlbuilder.New(voyagerGraphQLBaseURL, queryIDs, converter, logger)
	direct := directclient.New()
	wsAuth := wsrouter.NewAuthenticator(appCfg.JWTSecretKey)
	wsRouter := wsrouter.New(wsAuth, logger,
		wsrouter.WithPingInterval(appCfg.PingIntervalDuration),
		wsrouter.WithPongTimeout(appCfg.PongTimeoutDuration),
		wsrouter.WithBackpressureTimeout(appCfg.BackpressureTimeoutDuration),
	)
	orch := orchestrator.New(builder, direct, wsRouter, logger)

	return Deps{
		Pool:            pool,
		Registry:        registry,
		Builder:         builder,
		Converter:       converter,
		ProfileResolver: profileResolver,
		Direct:          direct,
		Router:          wsRouter,
		Orchestrator:    orch,
		AuditLogger:     auditLogger,
	}, nil
}

// EnsureSchema creates the api_keys table if it doesn't already exist.
func EnsureSchema(ctx context.Context, core *config.CoreConfig, appCfg Config, deps Deps, logger *zap.Logger) error {
	store := credentials.NewPostgresStore(deps.Pool)
	return store.EnsureSchema(ctx)
}

// Shutdown closes the Postgres pool and flushes the audit logger's worker
// pool so no api_key.generate/delete event is lost on exit.
func Shutdown(ctx context.Context, core *config.CoreConfig, appCfg Config, deps Deps, logger *zap.Logger) error {
	if deps.AuditLogger != nil {
		if err := deps.AuditLogger.Close(); err != nil {
			logger.Warn("audit logger close failed", zap.Error(err))
		}
	}
	deps.Pool.Close()
	return nil
}

// newRedisCache builds a cache.Cache from a redis:// URL, reusing
// pantry/cache's RedisConfig address-based constructor.
func newRedisCache(redisURL string) (cache.Cache, error) {
	u, err := url.Parse(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	var password string
	if u.User != nil {
		password, _ = u.User.Password()
	}
	return cache.NewRedisWithConfig(cache.RedisConfig{
		Address:      u.Host,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}
