package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request id; the client gets the
// mapped user message from core.MapError, as JSON for API routes and as an
// HTML page otherwise.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/patrimonio/internal/core"
	"github.com/JonMunkholm/patrimonio/internal/logging"
	"github.com/JonMunkholm/patrimonio/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		parseErr  *core.ParseError
		actionErr *core.ActionError
		lookupErr *core.LookupError
		maxBytes  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &actionErr):
		switch actionErr.Reason {
		case core.ReasonInputCancelled:
			return http.StatusUnprocessableEntity
		case core.ReasonUnknownAction:
			return http.StatusBadRequest
		}
		return http.StatusConflict
	case errors.As(err, &parseErr), errors.Is(err, core.ErrEmptyImport):
		return http.StatusBadRequest
	case errors.As(err, &lookupErr), errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRestorePending),
		errors.Is(err, core.ErrNoRestoreCandidate),
		errors.Is(err, core.ErrParseInFlight),
		errors.Is(err, core.ErrNoItems):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorStatus(w, r, err, statusFor(err))
}

// respondErrorStatus is respondError with an explicit status.
func respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ErrorPage(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logger.Error("render error page", "error", err)
	}
}

// badRequest reports a malformed request that never reached the session.
func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondErrorStatus(w, r, errors.New(message), http.StatusBadRequest)
}

// wantsJSON reports whether the client should get a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
