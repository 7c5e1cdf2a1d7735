package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeInvalidRequestBody = "invalid_request_body"
	codeValidationFailed   = "validation_failed"
	codeInvalidDate        = "invalid_date"
	codeInvalidInterval    = "invalid_interval"
	codeInvalidCost        = "invalid_cost"
	codeSlotConflict       = "slot_conflict"
	codeOutOfHours         = "out_of_hours"
	codeInvalidTransition  = "invalid_state_transition"
	codeRetryLater         = "retry_later"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps booking errors onto HTTP responses. Anything the
// booking core does not recognise is logged and reported as internal.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var hours *reservations.OutOfHoursError
	switch {
	case errors.Is(err, reservations.ErrSlotConflict):
		writeError(w, http.StatusConflict, codeSlotConflict, err.Error())
	case errors.As(err, &hours):
		writeError(w, http.StatusUnprocessableEntity, codeOutOfHours, err.Error())
	case errors.Is(err, reservations.ErrInvalidCost):
		writeError(w, http.StatusBadRequest, codeInvalidCost, reservations.ErrInvalidCost.Error())
	case errors.Is(err, reservations.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
	case errors.Is(err, reservations.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case reservations.IsNotFound(err):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, reservations.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, reservations.ErrLockTimeout):
		log.WarnContext(r.Context(), "lock wait gave up", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, codeRetryLater, reservations.ErrLockTimeout.Error())
	default:
		log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
