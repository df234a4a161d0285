package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/hold-ledger/internal/api/problem"
	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	problem.Write(w, r, status, typeURL(problemType), http.StatusText(status), message)
}

func typeURL(problemType string) string {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		return problem.Type(problemType)
	}
	return problemType
}

// RespondServiceError maps a service error onto a problem response. Unknown
// errors are logged and reported as 500 without leaking their text.
func RespondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if v, ok := domain.AsValidation(err); ok {
		status, slug := http.StatusUnprocessableEntity, "validation/failed"
		if errors.Is(err, domain.ErrImmutable) {
			status, slug = http.StatusConflict, "hold/immutable"
		}
		problem.WriteWithErrors(w, r, status, typeURL(slug), http.StatusText(status), v.Error(), v.Errors)
		return
	}

	switch {
	case errors.Is(err, domain.ErrHoldNotFound):
		RespondError(w, r, http.StatusNotFound, "hold/not-found", err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		RespondError(w, r, http.StatusNotFound, "user/not-found", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		RespondError(w, r, http.StatusConflict, "hold/invalid-transition", err.Error())
	case errors.Is(err, domain.ErrUnknownAccount),
		errors.Is(err, domain.ErrUnknownTransfer),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrValidation):
		RespondError(w, r, http.StatusBadRequest, "ledger/invalid-transfer", err.Error())
	case errors.Is(err, domain.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		RespondError(w, r, http.StatusServiceUnavailable, "ledger/lock-timeout", "accounts are busy, retry later")
	default:
		zap.L().Error(op+" failed", zap.Error(err), zap.String("path", r.URL.Path))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

// decodeAndValidate reads a JSON body into dst and runs the struct validator.
// It writes the problem response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	if err := validateStruct(dst); err != nil {
		var fields fieldProblems
		if !errors.As(err, &fields) {
			RespondServiceError(w, r, "validate request", err)
			return false
		}
		problem.WriteWithErrors(w, r, http.StatusBadRequest, typeURL("request/invalid-body"),
			http.StatusText(http.StatusBadRequest), "request body failed validation", fields)
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, fmt.Sprintf("Invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
