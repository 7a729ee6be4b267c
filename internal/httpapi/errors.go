package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/obs"
)

// handleError maps the apperr taxonomy onto status codes. Anything outside
// the taxonomy is logged and answered with a fixed message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	msg, ok := apperr.Message(err)
	if !ok {
		obs.Error("internal_error", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidState):
		writeError(w, r, http.StatusBadRequest, msg)
	case errors.Is(err, apperr.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="trusthub"`)
		writeError(w, r, http.StatusUnauthorized, msg)
	case errors.Is(err, apperr.ErrForbidden):
		w.Header().Set("WWW-Authenticate", `Bearer realm="trusthub", error="insufficient_scope"`)
		writeError(w, r, http.StatusForbidden, msg)
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, r, http.StatusNotFound, msg)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"message": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON reads exactly one JSON object. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body too large")
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("unexpected data after JSON body")
	}
	return nil
}
