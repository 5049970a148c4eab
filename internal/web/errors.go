package web

// Errors leave the API in one shape: the technical error is logged with the
// request id, and the client gets core.MapError's message, action and code.
// The HTTP status follows the code's family.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

func errorResponse(err error) ErrorResponse {
	var re *requestError
	if errors.As(err, &re) {
		return ErrorResponse{Error: re.msg, Message: re.msg, Code: "REQ001"}
	}
	msg := core.MapError(err)
	return ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch {
	case code == "REQ001":
		return http.StatusBadRequest
	case code == "CAT003":
		return http.StatusNotFound
	case code == "CAT005":
		return http.StatusForbidden
	case strings.HasPrefix(code, "CAT"):
		return http.StatusBadGateway
	case code == "SRC002":
		return http.StatusRequestEntityTooLarge
	case code == "SRC001":
		return http.StatusUnsupportedMediaType
	case strings.HasPrefix(code, "SRC"), strings.HasPrefix(code, "MAP"),
		strings.HasPrefix(code, "VAL"), strings.HasPrefix(code, "DUP"):
		return http.StatusUnprocessableEntity
	case code == "RUN002":
		return http.StatusServiceUnavailable
	case code == "RUN003":
		return http.StatusGatewayTimeout
	case code == "RUN001":
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorResponse(err)
	status := statusFor(body.Code)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", body.Code,
	)

	if body.Code == "RUN002" {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, body)
}
