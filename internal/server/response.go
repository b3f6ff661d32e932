package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"transferledger/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

// writeError maps a domain error to a status code. Internal detail is
// logged, never leaked to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal failure"

	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		status, message = http.StatusBadRequest, "invalid input"
	case errors.Is(err, ledger.ErrSelfTransfer):
		status, message = http.StatusBadRequest, "self transfer not allowed"
	case errors.Is(err, ledger.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status, message = http.StatusUnprocessableEntity, "insufficient funds"
	case errors.Is(err, ledger.ErrDuplicateKey):
		status, message = http.StatusConflict, "external key already in use"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusServiceUnavailable, "request canceled"
	default:
		s.logger.Error("request failed", zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{Error: message})
}
