package web

// errors.go provides unified error responses for the web layer.
//
// The technical error is logged with the request id; the client gets the
// core.MapError message as JSON, or as an HTML fragment for HTMX requests.

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/catalog-import/internal/core"
	"github.com/JonMunkholm/catalog-import/internal/logging"
	"github.com/JonMunkholm/catalog-import/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error. Code is machine-readable,
// Message and Action are for people.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	// Details carries structured context such as per-mapping problems.
	Details any `json:"details,omitempty"`
}

// errBadRequest marks malformed requests that carry no core sentinel.
var errBadRequest = errors.New("invalid request")

// badRequest marks err as a client error while keeping its message first,
// so core.MapError still finds the specific pattern.
func badRequest(err error) error {
	return fmt.Errorf("%w (%w)", err, errBadRequest)
}

// statusFor maps core sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrMalformedInput),
		errors.Is(err, core.ErrMissingRequiredMapping),
		errors.Is(err, core.ErrDuplicateTarget),
		errors.Is(err, core.ErrUnknownTarget),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidStrategy),
		errors.Is(err, core.ErrNoDuplicateMatch):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownCatalog),
		errors.Is(err, core.ErrBatchNotFound),
		errors.Is(err, core.ErrElementNotFound),
		errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateBatch),
		errors.Is(err, core.ErrBatchConflict),
		errors.Is(err, core.ErrDuplicateTemplate):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyExecutions):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message with the status
// from statusFor.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorDetails(w, r, err, nil)
}

func (s *Server) respondErrorDetails(w http.ResponseWriter, r *http.Request, err error, details any) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	log := logger.Warn
	if status >= http.StatusInternalServerError {
		log = logger.Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if isHTMX(r) {
		renderErrorPartial(w, r, userMsg, status)
		return
	}
	writeJSONStatus(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Details: details,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error alert", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
