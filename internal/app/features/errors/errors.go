// internal/app/features/errors/errors.go
package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handler writes the JSON bodies for requests no route claims and for
// handlers that panic.
type Handler struct {
	Log *zap.Logger
}

// NewHandler constructs an errors Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// NotFound answers any path without a route.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	jsonresp.Fail(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path))
}

// MethodNotAllowed answers a known path with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonresp.Fail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
}

// Recoverer turns a handler panic into a logged 500.
func (h *Handler) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.Log.Error("panic serving request",
				zap.Any("panic", rec),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.ByteString("stack", debug.Stack()))
			jsonresp.Fail(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
