package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"transferledger/internal/ledger"
)

type createAccountRequest struct {
	DisplayName    string           `json:"display_name"`
	ExternalKey    string           `json:"external_key"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type accountResponse struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

type transferRequest struct {
	FromID  string           `json:"from_id"`
	FromKey string           `json:"from_key"`
	ToID    string           `json:"to_id"`
	ToKey   string           `json:"to_key"`
	Amount  *decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	TransactionID string          `json:"transaction_id"`
	FromBalance   decimal.Decimal `json:"from_balance"`
	ToBalance     decimal.Decimal `json:"to_balance"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.InitialBalance == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "initial_balance is required"})
		return
	}

	acct, err := s.ledger.OpenAccount(r.Context(), req.DisplayName, req.ExternalKey, *req.InitialBalance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, accountResponse{ID: acct.ID, Balance: acct.Balance})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.GetAccounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := s.ledger.GetBalance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accountResponse{ID: acct.ID, Balance: acct.Balance})
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.GetAccountTransactions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Amount == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount is required"})
		return
	}

	fromID, err := s.resolveAccountRef(r, req.FromID, req.FromKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	toID, err := s.resolveAccountRef(r, req.ToID, req.ToKey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.ledger.Transfer(r.Context(), fromID, toID, *req.Amount, r.Header.Get("Idempotency-Key"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	s.writeJSON(w, status, transferResponse{
		TransactionID: res.TransactionID,
		FromBalance:   res.FromBalance,
		ToBalance:     res.ToBalance,
	})
}

// resolveAccountRef turns a from_id/from_key (or to_id/to_key) pair into
// an account id, using the directory when only the key was given.
func (s *Server) resolveAccountRef(r *http.Request, id, key string) (string, error) {
	if id != "" {
		return id, nil
	}
	if key == "" {
		return "", ledger.ErrInvalidInput
	}
	return s.ledger.ResolveKey(r.Context(), key)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.GetTransactions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}
