package gwerrors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Write writes err as the {"detail","code"} JSON envelope with the matching
// HTTP status.
func Write(w http.ResponseWriter, err error) {
	writeError(w, From(err))
}

// WriteWithLogger is like Write but also logs 5xx errors, including their
// wrapped cause and any stashed details, through the given logger.
func WriteWithLogger(w http.ResponseWriter, err error, logger *zap.Logger) {
	e := From(err)
	if e.Status >= 500 && logger != nil {
		fields := []zap.Field{zap.String("code", e.Code), zap.String("message", e.Message)}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		for k, v := range e.Details {
			fields = append(fields, zap.Any(k, v))
		}
		logger.Error("request failed", fields...)
	}
	writeError(w, e)
}

func writeError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(Body{Detail: e.Message, Code: e.Code})
}

// NotFoundHandler responds 404 with the gateway's envelope, for chi's NotFound hook.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Write(w, NotFound("the requested resource was not found"))
	})
}

// MethodNotAllowedHandler responds 405 with the gateway's envelope, for chi's MethodNotAllowed hook.
func MethodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Write(w, MethodNotAllowed("the requested method is not allowed"))
	})
}
