package middleware

import (
	"net/http"

	"github.com/linkedingateway/gateway/gateway/gwerrors"
	"go.uber.org/zap"
)

// NotFoundHandler returns a handler that logs a 404 and returns the gateway's
// {detail,code} error body. It is designed to be passed directly to
// chi.Router.NotFound(..).
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Info("not_found",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}

		gwerrors.Write(w, gwerrors.NotFound("the requested resource was not found"))
	}
}

// MethodNotAllowedHandler returns a handler that logs a 405 and returns the
// gateway's {detail,code} error body. It is designed to be passed directly to
// chi.Router.MethodNotAllowed(..).
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Info("method_not_allowed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}

		gwerrors.Write(w, gwerrors.MethodNotAllowed("the requested HTTP method is not allowed for this resource"))
	}
}
