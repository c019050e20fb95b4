package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.com/ccsd.net/internal/static/errs"
)

func ResponseWithJson(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func ResponseError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StatusForError maps a service error to the HTTP status reported for it
func StatusForError(err error) int {
	switch {
	case errors.Is(err, errs.NoEntry):
		return http.StatusNotFound
	case errors.Is(err, errs.InvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, errs.StaleVersion), errors.Is(err, errs.UpdateInProgress):
		return http.StatusConflict
	case errors.Is(err, errs.NotQuorate):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.Timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ResponseServiceError writes err with the status StatusForError picks
func ResponseServiceError(w http.ResponseWriter, err error) {
	ResponseError(w, err.Error(), StatusForError(err))
}
