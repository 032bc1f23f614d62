package controllers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/rzbill/seglog/pkg/dberrors"
)

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResp{Error: message})
}

// writeStoreError maps a storage failure to an HTTP status.
func writeStoreError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dberrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dberrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, pebble.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, dberrors.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, dberrors.ErrCatchUp):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeCreated writes a 201 Created response with a JSON body.
func writeCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(data)
}

// parseLimit parses a positive integer, returning def for empty or invalid input.
func parseLimit(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}

// parseBool returns true for "true" or "1".
func parseBool(s string) bool {
	return s == "true" || s == "1"
}

// decodePathKey decodes a base64url (unpadded or padded) path segment.
func decodePathKey(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.Wrap(dberrors.ErrInvalidArgument, "empty key")
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(dberrors.ErrInvalidArgument, "key %q is not base64url", s)
	}
	return b, nil
}

// encodePathKey is the inverse of decodePathKey.
func encodePathKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
