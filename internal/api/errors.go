package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/ir"
)

// Code reported for failures that carry no entity error code.
const codeInternal = "INTERNAL"

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// statusFor maps an error to its HTTP status and code.
func statusFor(err error) (int, string) {
	switch code := ir.CodeOf(err); code {
	case ir.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case ir.ErrCodeConflict:
		return http.StatusConflict, string(code)
	case ir.ErrCodeInvalidName, ir.ErrCodeInvalidArgument:
		return http.StatusBadRequest, string(code)
	}
	if errors.Is(err, invoke.ErrStopped) {
		return http.StatusServiceUnavailable, codeInternal
	}
	return http.StatusInternalServerError, codeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Code: code, Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Code:  string(ir.ErrCodeInvalidArgument),
		Error: err.Error(),
	})
}
