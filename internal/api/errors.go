package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MediSynth-io/authkit/internal/handlers"
)

const msgInternal = "Something went wrong!"

// APIError is an error with a client-facing status and message. Handlers
// return it for every expected failure; anything else is an internal error.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func badRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

func unauthorized(msg string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Message: msg}
}

func notFound(msg string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: msg}
}

// handlerFunc is an http handler that reports failure through its result.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts fn to http.HandlerFunc. An *APIError is written as is; any
// other error is logged and answered with 500 and the route's fallback
// message.
func (api *Api) handle(fn handlerFunc, fallback string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			handlers.WriteError(w, apiErr.Status, apiErr.Message)
			return
		}

		api.log.Errorw(fallback,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
		)
		handlers.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// Recoverer turns a panic into a logged 500 with a fixed message.
func (api *Api) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			api.log.Errorw("panic while serving request",
				"panic", rvr,
				"request_id", middleware.GetReqID(r.Context()),
				"stack", string(debug.Stack()),
			)
			handlers.WriteError(w, http.StatusInternalServerError, msgInternal)
		}()

		next.ServeHTTP(w, r)
	})
}

// respond writes v as JSON. Encoding failures are logged, not returned.
func (api *Api) respond(w http.ResponseWriter, status int, v any) error {
	if err := handlers.WriteJSON(w, status, v); err != nil {
		api.log.Warnw("failed to write response", "error", err)
	}
	return nil
}
