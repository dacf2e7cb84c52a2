package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/clock"
	"github.com/faucetdb/tollgate/internal/model"
	"github.com/faucetdb/tollgate/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// classifyKeyError maps key and clock errors to an HTTP status and a client
// message. Unknown keys are 404 here; the gate reports them as 401.
func classifyKeyError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrWrongLength):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, clock.ErrOverflow),
		errors.Is(err, clock.ErrNegativeDuration),
		errors.Is(err, service.ErrLifetimeTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrUnableToReadKey):
		return http.StatusNotFound, "Key not found"
	case errors.Is(err, auth.ErrKeyExpired):
		return http.StatusUnauthorized, "Key has expired"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// parseSeconds parses a lifetime given in whole seconds. Values too large
// for a time.Duration are reported as clock.ErrOverflow.
func parseSeconds(s string) (time.Duration, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, clock.ErrOverflow
		}
		return 0, err
	}
	if n > math.MaxInt64/uint64(time.Second) {
		return 0, clock.ErrOverflow
	}
	return time.Duration(n) * time.Second, nil
}
