package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable record of one committed transfer.
// Records are append-only: once written they are never mutated or deleted.
type Transaction struct {
	ID             string          `json:"id"`
	FromAccount    string          `json:"from_account"`
	ToAccount      string          `json:"to_account"`
	Amount         decimal.Decimal `json:"amount"` // always positive
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"` // set at commit time
}
