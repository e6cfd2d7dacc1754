package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/logger"
	"multi-tenant-notes/internal/metrics"
)

// statusFor is the only place error codes become HTTP statuses.
func statusFor(code string) int {
	switch code {
	case errs.EUnauthenticated:
		return http.StatusUnauthorized
	case errs.EForbidden, errs.EQuotaExceeded:
		return http.StatusForbidden
	case errs.ENotFound:
		return http.StatusNotFound
	case errs.EInvalid, errs.EConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Message      string `json:"message"`
	LimitReached bool   `json:"limitReached,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.Code(err)
	status := statusFor(code)
	log := logger.FromContext(r.Context())

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", zap.Error(err))
	case code == errs.EUnauthenticated:
		metrics.AuthFailures.WithLabelValues("token").Inc()
		log.Warn("unauthenticated request", zap.String("reason", errs.Message(err)))
	}

	writeJSON(w, status, errorBody{
		Message:      errs.Message(err),
		LimitReached: code == errs.EQuotaExceeded,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Invalid("Invalid request body")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies whose fields are all optional:
// an empty body decodes as {}.
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errs.Invalid("Invalid request body")
}
