package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
)

// response is the standard JSON envelope every endpoint writes.
type response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Status: "ok", Timestamp: time.Now().UTC(), Data: data})
}

// writeBackendError maps a backend error to an HTTP status and error
// envelope. ErrInternal is reported as a transient failure at this
// boundary: callers should retry rather than treat it as permanent.
func writeBackendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, backend.ErrTransient), errors.Is(err, backend.ErrInternal):
		status = http.StatusServiceUnavailable
	case errors.Is(err, backend.ErrCorrupt):
		status = http.StatusInternalServerError
	case errors.Is(err, backend.ErrNotSupported):
		status = http.StatusNotImplemented
	case errors.Is(err, backend.ErrConfigError):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, response{Status: "error", Timestamp: time.Now().UTC(), Error: err.Error()})
}
