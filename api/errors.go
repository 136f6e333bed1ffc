package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrNilService indicates a Server was built without a Service.
	ErrNilService = errors.New("api: service is required")

	// ErrBadRequest indicates a request body that is not valid JSON.
	ErrBadRequest = errors.New("api: malformed request body")
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

var errNoStatic = errors.New("api: not found")
