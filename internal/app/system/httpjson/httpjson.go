// internal/app/system/httpjson/httpjson.go

// Package httpjson is the JSON request/response codec for handlers.
// Error responses follow the API contract: {"err": "...", "status": N}.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// errorBody matches the wire format consumed by the frontend.
type errorBody struct {
	Err    string `json:"err"`
	Status int    `json:"status"`
}

// Write encodes v as JSON with the given status code.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// OK writes v with a 200.
func OK(w http.ResponseWriter, v any) { Write(w, http.StatusOK, v) }

// Error renders err as {err, status}. Internal causes are logged, not leaked.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apierr.StatusOf(err)
	if status == http.StatusInternalServerError && log != nil {
		log.Error("internal error", zap.Error(err))
	}
	Write(w, status, errorBody{Err: apierr.MessageOf(err), Status: status})
}

// Decode reads a JSON request body into dst, capping the body size.
// Unknown fields are tolerated; malformed bodies map to a 400 domain error.
func Decode(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.BadRequest("request body is required")
		}
		return apierr.BadRequest("malformed JSON body").Wrap(err)
	}
	return nil
}
