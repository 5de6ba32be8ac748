package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kaneboard/kaneboard/internal/models"
)

// CodeUnauthenticated is returned when a request carries no user.
const CodeUnauthenticated = "UNAUTHENTICATED"

var errNoUser = errors.New("X-User-ID header is required")

// ErrorBody wraps an error in the response envelope.
type ErrorBody struct {
	Error ErrorItem `json:"error"`
}

// ErrorItem describes a failed request.
type ErrorItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// SoftFailure is the 200 response for requests that did nothing.
type SoftFailure struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation, models.KindBusiness:
		return http.StatusUnprocessableEntity
	case models.KindAuthorization:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindRetryable:
		return http.StatusServiceUnavailable
	case models.KindSoft:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// writeError renders err. Untyped errors become INTERNAL without leaking
// their message.
func writeError(w http.ResponseWriter, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) {
		writeJSON(w, http.StatusInternalServerError, ErrorBody{
			Error: ErrorItem{Code: models.CodeInternal, Message: "internal error"},
		})
		return
	}

	kind := typed.Kind()
	if kind == models.KindSoft {
		writeJSON(w, http.StatusOK, SoftFailure{OK: false, Code: typed.Code, Message: typed.Error()})
		return
	}
	writeJSON(w, statusFor(kind), ErrorBody{
		Error: ErrorItem{Code: typed.Code, Message: typed.Error(), Field: typed.Field},
	})
}

// fail renders err for r and logs untyped errors, whose cause the
// response body hides.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeError(w, err)
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, ErrorBody{
		Error: ErrorItem{Code: CodeUnauthenticated, Message: errNoUser.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
