package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"authority/cmd/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads exactly one JSON value with unknown fields rejected.
// Failures are Validation errors on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return apperr.Field("body", "is required")
	}
	return bodyError(decodeBody(w, r, maxBytes, dst))
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be absent.
// An empty body, chunked or not, leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := decodeBody(w, r, maxBytes, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return bodyError(err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("trailing data after JSON value")

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooLarge):
		return apperr.Field("body", "is too large")
	case errors.Is(err, io.EOF):
		return apperr.Field("body", "is required")
	case errors.Is(err, errTrailingData):
		return apperr.Field("body", "must contain a single JSON object")
	default:
		return apperr.Field("body", "is not valid JSON for this request")
	}
}
