// Package postgres provides a durable interfaces.LedgerStore backed by
// PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"transferledger/internal/interfaces"
	"transferledger/internal/ledger"
	"transferledger/internal/models"
)

// uniqueViolation is the postgres error code raised by the external_key
// and idempotency_key unique constraints.
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle. The caller owns the handle's
// lifecycle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to postgres with the given DSN and verifies the
// connection before returning a store.
func Open(ctx context.Context, dsn string) (*Store, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open postgres: %v", ledger.ErrInternal, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: ping postgres: %v", ledger.ErrInternal, err)
	}
	return NewStore(db), db, nil
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	external_key TEXT NOT NULL UNIQUE,
	balance      NUMERIC NOT NULL CHECK (balance >= 0),
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	from_account    TEXT NOT NULL REFERENCES accounts(id),
	to_account      TEXT NOT NULL REFERENCES accounts(id),
	amount          NUMERIC NOT NULL CHECK (amount > 0),
	idempotency_key TEXT UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ledger.ErrInternal, err)
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, acct models.Account) error {
	const query = `INSERT INTO accounts (id, display_name, external_key, balance, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		acct.ID, acct.DisplayName, acct.ExternalKey, acct.Balance, acct.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateKey, acct.ExternalKey)
		}
		return fmt.Errorf("%w: create account: %v", ledger.ErrInternal, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (models.Account, error) {
	const query = `SELECT id, display_name, external_key, balance, created_at
	FROM accounts WHERE id = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id), id)
}

func (s *Store) GetAccountByKey(ctx context.Context, key string) (models.Account, error) {
	const query = `SELECT id, display_name, external_key, balance, created_at
	FROM accounts WHERE external_key = $1`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, key), key)
}

func (s *Store) scanAccount(row *sql.Row, ref string) (models.Account, error) {
	var acct models.Account
	err := row.Scan(&acct.ID, &acct.DisplayName, &acct.ExternalKey, &acct.Balance, &acct.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Account{}, fmt.Errorf("%w: account %s", ledger.ErrNotFound, ref)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: get account: %v", ledger.ErrInternal, err)
	}
	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	const query = `SELECT id, display_name, external_key, balance, created_at
	FROM accounts ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", ledger.ErrInternal, err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var acct models.Account
		if err := rows.Scan(&acct.ID, &acct.DisplayName, &acct.ExternalKey, &acct.Balance, &acct.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: list accounts: %v", ledger.ErrInternal, err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", ledger.ErrInternal, err)
	}
	return accounts, nil
}

// ApplyTransfer writes both balance updates and the transaction record in
// a single database transaction, rolled back as a whole on any failure.
func (s *Store) ApplyTransfer(ctx context.Context, from, to models.Account, tx models.Transaction) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transfer: %v", ledger.ErrInternal, err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const updateBalance = `UPDATE accounts SET balance = $2 WHERE id = $1`
	if _, err = dbTx.ExecContext(ctx, updateBalance, from.ID, from.Balance); err != nil {
		return fmt.Errorf("%w: debit %s: %v", ledger.ErrInternal, from.ID, err)
	}
	if _, err = dbTx.ExecContext(ctx, updateBalance, to.ID, to.Balance); err != nil {
		return fmt.Errorf("%w: credit %s: %v", ledger.ErrInternal, to.ID, err)
	}

	const insertTx = `INSERT INTO transactions (id, from_account, to_account, amount, idempotency_key, created_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`
	if _, err = dbTx.ExecContext(ctx, insertTx,
		tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount, tx.IdempotencyKey, tx.CreatedAt); err != nil {
		return fmt.Errorf("%w: record transaction: %v", ledger.ErrInternal, err)
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transfer: %v", ledger.ErrInternal, err)
	}
	return nil
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (models.Transaction, error) {
	const query = `SELECT id, from_account, to_account, amount, COALESCE(idempotency_key, ''), created_at
	FROM transactions WHERE idempotency_key = $1`
	return s.scanTransaction(s.db.QueryRowContext(ctx, query, key))
}

func (s *Store) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	const query = `SELECT id, from_account, to_account, amount, COALESCE(idempotency_key, ''), created_at
	FROM transactions WHERE id = $1`
	return s.scanTransaction(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) scanTransaction(row *sql.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.ID, &tx.FromAccount, &tx.ToAccount, &tx.Amount, &tx.IdempotencyKey, &tx.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Transaction{}, fmt.Errorf("%w: transaction", ledger.ErrNotFound)
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: get transaction: %v", ledger.ErrInternal, err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	const query = `SELECT id, from_account, to_account, amount, COALESCE(idempotency_key, ''), created_at
	FROM transactions ORDER BY created_at`
	return s.queryTransactions(ctx, query)
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	const query = `SELECT id, from_account, to_account, amount, COALESCE(idempotency_key, ''), created_at
	FROM transactions WHERE from_account = $1 OR to_account = $1 ORDER BY created_at`
	return s.queryTransactions(ctx, query, accountID)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ledger.ErrInternal, err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.FromAccount, &tx.ToAccount, &tx.Amount, &tx.IdempotencyKey, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: list transactions: %v", ledger.ErrInternal, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ledger.ErrInternal, err)
	}
	return txs, nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
