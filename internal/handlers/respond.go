package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

// responder holds the JSON response helpers shared by every handler.
type responder struct {
	logger *utils.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h responder) respondError(w http.ResponseWriter, err error) {
	status, body := h.errorBody(err)
	h.respondJSON(w, status, body)
}

// errorBody maps err to a status code and the {success:false, message} body.
// Rejections by the validation stage also carry the validation result.
func (h responder) errorBody(err error) (int, map[string]interface{}) {
	body := map[string]interface{}{"success": false}

	var rejected *services.RejectedError
	var appErr *utils.AppError
	switch {
	case errors.As(err, &rejected):
		body["message"] = rejected.Error()
		body["validation"] = rejected.Validation
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &appErr):
		body["message"] = appErr.Message
		if appErr.StatusCode >= 500 {
			h.logger.Error("Request error", "status", appErr.StatusCode, "error", err)
		}
		return appErr.StatusCode, body
	}

	h.logger.Error("Unhandled request error", "error", err)
	body["message"] = "Internal server error"
	return http.StatusInternalServerError, body
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return utils.NewBadRequestError(fmt.Sprintf("Request body exceeds %d MB limit", limit>>20))
		case errors.Is(err, io.EOF):
			return utils.NewBadRequestError("Request body is required")
		}
		return utils.NewBadRequestError("Invalid JSON request body")
	}
	return nil
}
