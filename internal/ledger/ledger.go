// Package ledger implements the authoritative value-transfer core:
// account creation, atomic transfers and linearizable balance reads.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transferledger/internal/interfaces"
	"transferledger/internal/metrics"
	"transferledger/internal/models"
	"transferledger/internal/models/events"
)

// publishTimeout bounds the post-commit event publish, which runs outside
// the transfer's critical section.
const publishTimeout = 5 * time.Second

// Ledger is the only writer of account balances. Each account has an
// exclusive lock; a transfer takes both of its accounts' locks in lexical
// id order, so opposing transfers between the same pair cannot deadlock
// and transfers on disjoint pairs never block each other.
type Ledger struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher // nil disables event publishing
	logger    *zap.Logger
	metrics   *metrics.Metrics

	locksMu sync.Mutex
	locks   map[string]chan struct{} // account id -> 1-slot semaphore
}

// NewLedger creates a ledger over the given store. publisher may be nil.
func NewLedger(store interfaces.LedgerStore, publisher interfaces.EventPublisher, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		locks:     make(map[string]chan struct{}),
	}
}

// TransferResult reports the outcome of a committed transfer.
type TransferResult struct {
	TransactionID string
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
	CommittedAt   time.Time
	// Replayed is true when the idempotency key matched an earlier
	// committed transfer and no new transfer was applied.
	Replayed bool
}

// lockFor returns the semaphore for an account, creating it on first use.
// Locks are never removed: accounts are not deleted in this system.
func (l *Ledger) lockFor(accountID string) chan struct{} {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()

	sem, ok := l.locks[accountID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[accountID] = sem
	}
	return sem
}

// acquire blocks until the semaphore is held or ctx is done. A waiter that
// gives up has touched no state.
func acquire(ctx context.Context, sem chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(sem chan struct{}) {
	<-sem
}

// OpenAccount creates an account with the given initial balance and
// indexes its external key. The insert and the index entry are atomic:
// there is no window where one exists without the other.
func (l *Ledger) OpenAccount(ctx context.Context, displayName, externalKey string, initialBalance decimal.Decimal) (models.Account, error) {
	if displayName == "" || externalKey == "" {
		return models.Account{}, ErrInvalidInput
	}
	if initialBalance.IsNegative() {
		return models.Account{}, ErrInvalidInput
	}

	acct := models.Account{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		ExternalKey: externalKey,
		Balance:     initialBalance,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.store.CreateAccount(ctx, acct); err != nil {
		return models.Account{}, err
	}

	if l.metrics != nil {
		l.metrics.AccountsCreatedTotal.Inc()
	}
	l.logger.Info("account opened",
		zap.String("account_id", acct.ID),
		zap.String("balance", acct.Balance.String()))
	return acct, nil
}

// Transfer atomically moves amount from one account to the other and
// appends exactly one transaction record. On any failure no state
// changes. idempotencyKey is optional; a replayed key returns the
// original transaction without applying a second transfer.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, idempotencyKey string) (TransferResult, error) {
	start := time.Now()
	res, err := l.transfer(ctx, fromID, toID, amount, idempotencyKey)

	if l.metrics != nil {
		l.metrics.TransfersTotal.WithLabelValues(Classify(err)).Inc()
		l.metrics.TransferDuration.Observe(time.Since(start).Seconds())
	}
	if err == nil && !res.Replayed {
		// Both account locks are released by now; logging and event
		// publishing stay out of the critical section.
		l.logger.Info("transfer committed",
			zap.String("transaction_id", res.TransactionID),
			zap.String("from", fromID),
			zap.String("to", toID),
			zap.String("amount", amount.String()))
		l.publishCompleted(res, fromID, toID, amount)
	}
	return res, err
}

func (l *Ledger) transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, idempotencyKey string) (TransferResult, error) {
	// Input constraints, checked before any account is touched.
	if fromID == "" || toID == "" {
		return TransferResult{}, ErrInvalidInput
	}
	if amount.Sign() <= 0 {
		return TransferResult{}, ErrInvalidInput
	}
	if fromID == toID {
		return TransferResult{}, ErrSelfTransfer
	}

	// Lock both accounts in lexical id order. Either lock wait may be
	// abandoned via ctx; nothing has been mutated at that point.
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	firstSem, secondSem := l.lockFor(first), l.lockFor(second)
	if err := acquire(ctx, firstSem); err != nil {
		return TransferResult{}, err
	}
	defer release(firstSem)
	if err := acquire(ctx, secondSem); err != nil {
		return TransferResult{}, err
	}
	defer release(secondSem)

	// Replay check inside the critical section: a retry racing its
	// original shares the sender lock, so the two serialize here.
	if idempotencyKey != "" {
		prev, err := l.store.GetTransactionByIdempotencyKey(ctx, idempotencyKey)
		switch {
		case err == nil:
			return l.replayResult(ctx, prev, fromID, toID)
		case !IsNotFound(err):
			return TransferResult{}, err
		}
	}

	// Existence and balance checks happen under the same locks as the
	// mutation, so no check is ever based on a stale balance.
	from, err := l.store.GetAccount(ctx, fromID)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := l.store.GetAccount(ctx, toID)
	if err != nil {
		return TransferResult{}, err
	}
	if from.Balance.LessThan(amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	tx := models.Transaction{
		ID:             uuid.New().String(),
		FromAccount:    fromID,
		ToAccount:      toID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	// The commit itself is not cancellable: once ApplyTransfer starts it
	// runs to completion even if the caller's ctx fires.
	if err := l.store.ApplyTransfer(context.WithoutCancel(ctx), from, to, tx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		TransactionID: tx.ID,
		FromBalance:   from.Balance,
		ToBalance:     to.Balance,
		CommittedAt:   tx.CreatedAt,
	}, nil
}

// replayResult answers an idempotent retry with the originally committed
// transaction and the current balances. Both account locks are held.
func (l *Ledger) replayResult(ctx context.Context, prev models.Transaction, fromID, toID string) (TransferResult, error) {
	if prev.FromAccount != fromID || prev.ToAccount != toID {
		// Same key, different transfer: the client reused a token.
		return TransferResult{}, ErrInvalidInput
	}
	from, err := l.store.GetAccount(ctx, fromID)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := l.store.GetAccount(ctx, toID)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		TransactionID: prev.ID,
		FromBalance:   from.Balance,
		ToBalance:     to.Balance,
		CommittedAt:   prev.CreatedAt,
		Replayed:      true,
	}, nil
}

func (l *Ledger) publishCompleted(res TransferResult, fromID, toID string, amount decimal.Decimal) {
	if l.publisher == nil {
		return
	}
	event := events.TransactionCompleted{
		TransactionID: res.TransactionID,
		FromAccount:   fromID,
		ToAccount:     toID,
		Amount:        amount,
		OccurredAt:    res.CommittedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := l.publisher.Publish(ctx, event); err != nil {
			l.logger.Warn("event publish failed",
				zap.String("transaction_id", event.TransactionID),
				zap.Error(err))
		}
	}()
}

// GetBalance returns the account with its current balance. The read is
// linearizable with respect to transfer completion: ApplyTransfer makes
// both balances and the record visible together before Transfer returns.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (models.Account, error) {
	if accountID == "" {
		return models.Account{}, ErrInvalidInput
	}
	return l.store.GetAccount(ctx, accountID)
}

// ResolveKey looks an account up by its external key via the directory
// and returns its internal id.
func (l *Ledger) ResolveKey(ctx context.Context, externalKey string) (string, error) {
	if externalKey == "" {
		return "", ErrInvalidInput
	}
	acct, err := l.store.GetAccountByKey(ctx, externalKey)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

// GetAccounts lists every account.
func (l *Ledger) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return l.store.ListAccounts(ctx)
}

// GetTransaction returns one committed transaction record.
func (l *Ledger) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	if id == "" {
		return models.Transaction{}, ErrInvalidInput
	}
	return l.store.GetTransaction(ctx, id)
}

// GetTransactions lists the whole transaction log in commit order.
func (l *Ledger) GetTransactions(ctx context.Context) ([]models.Transaction, error) {
	return l.store.ListTransactions(ctx)
}

// GetAccountTransactions lists the transactions touching one account.
func (l *Ledger) GetAccountTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListTransactionsByAccount(ctx, accountID)
}
