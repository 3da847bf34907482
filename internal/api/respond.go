// Package api wires every core component behind a chi router, translating
// apperr.Error kinds into HTTP status codes at this boundary only, per
// spec.md §7. Nothing above this package ever touches net/http directly.
package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
)

// statusForKind is spec.md §7's error taxonomy, reproduced verbatim
// including the literal choice of 400 (not 409) for Conflict: the spec
// describes a conflict as a validation-shaped failure the caller can fix
// by adjusting the request, not a concurrent-edit race.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindSearchExec, apperr.KindBatchImport, apperr.KindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes v as a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: failed to encode response", zap.Error(err))
	}
}

// writeError maps err onto the {error, message} envelope spec.md §6
// describes. SQL fragments and other internal detail never leave this
// function — they go to the structured log only.
func writeError(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		zap.L().Error("api: unclassified error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal",
			"message": "an unexpected error occurred",
		})
		return
	}

	if ae.Detail != "" {
		zap.L().Error("api: request failed", zap.String("kind", string(ae.Kind)), zap.String("message", ae.Message), zap.String("detail", ae.Detail))
	} else {
		zap.L().Warn("api: request failed", zap.String("kind", string(ae.Kind)), zap.String("message", ae.Message))
	}

	writeJSON(w, statusForKind(ae.Kind), map[string]string{
		"error":   string(ae.Kind),
		"message": ae.Message,
	})
}
