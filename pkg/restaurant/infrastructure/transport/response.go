package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/model"
)

const (
	KindInvalidRequest  = "invalid_request"
	KindNotFound        = "not_found"
	KindOperationFailed = "operation_failed"
)

type successResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

// classify turns an error into what may be shown to a client. Only messages built by the
// service layer are passed through; anything else becomes a generic failure.
func classify(err error) (status int, kind, message string) {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, KindInvalidRequest, err.Error()
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound, KindNotFound, model.ErrOrderNotFound.Error()
	case errors.Is(err, model.ErrTableNotFound):
		return http.StatusNotFound, KindNotFound, model.ErrTableNotFound.Error()
	default:
		return http.StatusInternalServerError, KindOperationFailed, "operation failed, please try again"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, successResponse{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status, kind, message := classify(err)
	writeJSON(w, status, errorResponse{Success: false, Error: message, Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Success: false, Error: message, Kind: KindInvalidRequest})
}
