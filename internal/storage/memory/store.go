// Package memory provides an in-memory implementation of
// interfaces.LedgerStore, used by tests and the demo configuration.
package memory

import (
	"context"
	"fmt"
	"sync"

	"transferledger/internal/interfaces"
	"transferledger/internal/ledger"
	"transferledger/internal/models"
)

// Store keeps accounts, the external-key index and the append-only
// transaction log behind one mutex. All returned values are copies so
// callers can never reach the store's internal state.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]models.Account // account id -> account
	byKey        map[string]string         // external key -> account id
	transactions []models.Transaction      // append-only log, commit order
	byIdemKey    map[string]int            // idempotency key -> log index
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]models.Account),
		byKey:     make(map[string]string),
		byIdemKey: make(map[string]int),
	}
}

// CreateAccount inserts the account and indexes its external key in the
// same critical section, so there is no window where the account exists
// but is unlookupable.
func (s *Store) CreateAccount(ctx context.Context, acct models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[acct.ExternalKey]; exists {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateKey, acct.ExternalKey)
	}
	s.accounts[acct.ID] = acct
	s.byKey[acct.ExternalKey] = acct.ID
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: account %s", ledger.ErrNotFound, id)
	}
	return acct, nil
}

func (s *Store) GetAccountByKey(ctx context.Context, key string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: key %s", ledger.ErrNotFound, key)
	}
	return s.accounts[id], nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	return out, nil
}

// ApplyTransfer stores both updated accounts and appends the transaction
// record under one lock, so a reader sees either the whole transfer or
// none of it.
func (s *Store) ApplyTransfer(ctx context.Context, from, to models.Account, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[from.ID]; !ok {
		return fmt.Errorf("%w: account %s", ledger.ErrNotFound, from.ID)
	}
	if _, ok := s.accounts[to.ID]; !ok {
		return fmt.Errorf("%w: account %s", ledger.ErrNotFound, to.ID)
	}

	s.accounts[from.ID] = from
	s.accounts[to.ID] = to
	s.transactions = append(s.transactions, tx)
	if tx.IdempotencyKey != "" {
		s.byIdemKey[tx.IdempotencyKey] = len(s.transactions) - 1
	}
	return nil
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byIdemKey[key]
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: idempotency key", ledger.ErrNotFound)
	}
	return s.transactions[i], nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return models.Transaction{}, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
}

func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out, nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.FromAccount == accountID || tx.ToAccount == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
