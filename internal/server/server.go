// Package server is the HTTP facade over the ledger core. It validates
// request shape and translates domain errors to status codes; all
// business rules (existence, balance, self-transfer) stay in the core.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"transferledger/internal/ledger"
)

type Server struct {
	ledger *ledger.Ledger
	logger *zap.Logger
	router *mux.Router
}

// NewServer builds the facade and its routes.
func NewServer(l *ledger.Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{ledger: l, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/balance", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/transactions", s.handleAccountTransactions).Methods(http.MethodGet)

	r.HandleFunc("/transfer", s.handleTransfer).Methods(http.MethodPost)
	r.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)

	s.router = r
	return s
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}
