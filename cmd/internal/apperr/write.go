package apperr

import (
	"encoding/json"
	"net/http"
)

type body struct {
	Error any `json:"error"`
}

// Write renders err as the JSON error body with the status of its kind.
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	if e == nil {
		e = Internal(nil)
	}
	status := e.Status()

	var payload any
	switch {
	case status == http.StatusInternalServerError:
		payload = MsgInternal
	case e.Kind == KindValidation && len(e.Fields) > 0:
		payload = e.Fields
	case e.Message != "":
		payload = e.Message
	default:
		payload = http.StatusText(status)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body{Error: payload})
}
