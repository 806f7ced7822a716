package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"finhealth/internal/shared/apperr"
	"finhealth/internal/shared/logger"
	"finhealth/internal/shared/middleware"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Internal errors are logged and
// their detail hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := apperr.HTTPStatus(err)
	resp := ErrorResponse{Code: code, Message: err.Error()}

	var appErr *apperr.Error
	var ext *apperr.ExternalServiceError
	switch {
	case errors.As(err, &ext):
		resp.Message = "bank aggregator request failed"
		resp.ErrorCode = ext.ErrorCode
		resp.RequestID = ext.RequestID
		logger.FromContext(r.Context()).Warn().Err(err).Str("operation", ext.Operation).Msg("Aggregator call failed")
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
	default:
		resp.Message = "internal server error"
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("authentication required"))
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", key)
	}
	return n, nil
}
