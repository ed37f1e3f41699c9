// Package wsrouter implements the WebSocket Proxy Router: one live session
// per user, request/response correlation over a shared socket via
// single-shot rendezvous slots, and timeout/backpressure-driven eviction.
// Built on pantry/websocket's Conn (accept, ping/pong loop, serialized
// Write) rather than its Hub, since Hub models broadcast-to-many and this
// router needs supersede-on-reconnect, single-session-per-key semantics
// Hub doesn't have.
package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linkedingateway/gateway/gateway/gwerrors"
	pws "github.com/linkedingateway/gateway/pantry/websocket"
)

const (
	defaultPingInterval        = 30 * time.Second
	defaultPongTimeout         = 5 * time.Second
	defaultRequestTimeout      = 60 * time.Second
	defaultBackpressureTimeout = 10 * time.Second
	maxFrameSize               = 1 << 20
)

// Router tracks one live session per user and dispatches proxy requests to
// whichever session is currently registered for a user.
type Router struct {
	auth   *Authenticator
	logger *zap.Logger

	pingInterval        time.Duration
	pongTimeout         time.Duration
	backpressureTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithPingInterval overrides the default 30s ping cadence.
func WithPingInterval(d time.Duration) Option { return func(r *Router) { r.pingInterval = d } }

// WithPongTimeout overrides the default 5s pong deadline.
func WithPongTimeout(d time.Duration) Option { return func(r *Router) { r.pongTimeout = d } }

// WithBackpressureTimeout overrides the default 10s write-blocked threshold.
func WithBackpressureTimeout(d time.Duration) Option {
	return func(r *Router) { r.backpressureTimeout = d }
}

// New constructs a Router. auth verifies the handshake token on every
// upgrade.
func New(auth *Authenticator, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{
		auth:                auth,
		logger:              logger,
		pingInterval:        defaultPingInterval,
		pongTimeout:          defaultPongTimeout,
		backpressureTimeout: defaultBackpressureTimeout,
		sessions:            make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connected reports whether userID currently has a live session registered.
func (r *Router) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// Accept upgrades the request to a WebSocket after verifying the handshake
// token, registers the resulting session (superseding any existing one for
// the same user), and runs its read loop until the connection closes. It
// blocks for the lifetime of the connection; call it from the HTTP
// handler's goroutine.
func (r *Router) Accept(w http.ResponseWriter, req *http.Request) error {
	identity, err := r.auth.Authenticate(req)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return err
	}

	conn, err := pws.Accept(w, req, &pws.AcceptOptions{})
	if err != nil {
		return err
	}
	if pathUser := chi.URLParam(req, "userID"); pathUser != "" && pathUser != identity.UserID {
		_ = conn.CloseWithReason(pws.StatusCode(4401), "user id mismatch")
		return ErrInvalidToken
	}
	conn.SetReadLimit(maxFrameSize)

	sess := newSession(identity.UserID, identity.KeyID, conn)
	r.register(sess)
	defer r.unregister(sess)

	if r.logger != nil {
		r.logger.Info("proxy session connected", zap.String("user_id", identity.UserID), zap.String("key_id", identity.KeyID))
	}

	cfg := pws.Config{
		WriteTimeout:   r.backpressureTimeout,
		PingInterval:   r.pingInterval,
		PongTimeout:    r.pongTimeout,
		MaxMessageSize: maxFrameSize,
	}
	runErr := pws.RunWithConfig(req.Context(), conn, cfg, func(ctx context.Context, msgType pws.MessageType, data []byte) error {
		r.handleFrame(sess, data)
		return nil
	})

	if r.logger != nil && runErr != nil {
		r.logger.Info("proxy session closed", zap.String("user_id", identity.UserID), zap.Error(runErr))
	}
	return runErr
}

// register installs sess as the live session for its user, closing and
// discarding any previous one (superseded).
func (r *Router) register(sess *session) {
	r.mu.Lock()
	prev, existed := r.sessions[sess.userID]
	r.sessions[sess.userID] = sess
	r.mu.Unlock()

	if existed {
		_ = prev.conn.CloseWithReason(pws.StatusGoingAway, "superseded")
	}
}

// unregister removes sess if it is still the current session for its user
// (a superseded session must not clobber the new one's entry on its own,
// delayed teardown).
func (r *Router) unregister(sess *session) {
	r.mu.Lock()
	if cur, ok := r.sessions[sess.userID]; ok && cur == sess {
		delete(r.sessions, sess.userID)
	}
	r.mu.Unlock()
}

func (r *Router) handleFrame(sess *session, data []byte) {
	frame, ok := parseInbound(data)
	if !ok {
		return
	}
	if !sess.deliver(*frame) {
		if r.logger != nil {
			r.logger.Warn("proxy response for unknown or expired request_id",
				zap.String("user_id", sess.userID), zap.String("request_id", frame.RequestID))
		}
	}
}

// Dispatch sends req to userID's live session and waits for the matching
// response, respecting ctx's deadline and the backpressure threshold on the
// write itself. It returns a *gwerrors.Error for every failure path: no
// live connection, write-side backpressure, or request-timeout.
func (r *Router) Dispatch(ctx context.Context, userID string, req ProxyRequest) (*ProxyResponse, error) {
	r.mu.RLock()
	sess, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, gwerrors.NoProxyConnection("no active proxy connection for user")
	}

	req.Type = frameTypeProxyHTTPRequest
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, gwerrors.Internal(fmt.Sprintf("marshal proxy request: %v", err))
	}

	slot := sess.register(req.RequestID)
	defer sess.deregister(req.RequestID)

	writeCtx, cancel := context.WithTimeout(ctx, r.backpressureTimeout)
	writeErr := sess.writeLocked(writeCtx, payload)
	cancel()
	if writeErr != nil {
		if ctx.Err() == nil {
			return nil, gwerrors.ProxyBackpressure("proxy socket write blocked")
		}
		return nil, gwerrors.UpstreamTransportError(writeErr.Error())
	}

	timeout := defaultRequestTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case frame := <-slot:
		if frame.Err != nil {
			return nil, gwerrors.UpstreamTransportError(frame.Err.Error)
		}
		return frame.Response, nil
	case <-waitCtx.Done():
		return nil, gwerrors.ProxyTimeout("no response from browser extension within timeout")
	}
}

func (s *session) writeLocked(ctx context.Context, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, pws.MessageText, payload)
}
