package interfaces

import (
	"context"

	"transferledger/internal/models"
)

// LedgerStore is the narrow durable surface the ledger core writes through.
// Implementations must make CreateAccount and ApplyTransfer atomic: either
// every row/field they touch is visible together, or none of it is.
type LedgerStore interface {
	// CreateAccount inserts the account and its external-key index entry
	// atomically. Returns ledger.ErrDuplicateKey if the key is taken.
	CreateAccount(ctx context.Context, acct models.Account) error

	GetAccount(ctx context.Context, id string) (models.Account, error)

	// GetAccountByKey is the account directory lookup: external key -> account.
	GetAccountByKey(ctx context.Context, key string) (models.Account, error)

	ListAccounts(ctx context.Context) ([]models.Account, error)

	// ApplyTransfer commits both post-transfer balances and the transaction
	// record in one atomic unit. The caller has already validated the
	// transfer and holds exclusive access to both accounts.
	ApplyTransfer(ctx context.Context, from, to models.Account, tx models.Transaction) error

	// GetTransactionByIdempotencyKey returns the committed transaction for
	// a client-supplied idempotency key, or ledger.ErrNotFound.
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, error)

	GetTransaction(ctx context.Context, id string) (models.Transaction, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)
}
