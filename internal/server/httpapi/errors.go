package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to its HTTP status and public message.
// Unknown errors become 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorAuthenticationFailed):
		return http.StatusUnauthorized, "bad credentials"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "login name or contact e-mail already in use"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnsupported), errors.Is(err, common.ErrorNotImplemented):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, l logging.Logger, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		l.Error(ctx, "request failed", "error", err)
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
