package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the balance and identity metadata for one ledger account.
// Balance is mutated exclusively by the ledger's transfer path; every other
// consumer sees value copies.
type Account struct {
	ID          string          `json:"id"`           // opaque unique identifier, assigned at creation
	DisplayName string          `json:"display_name"` // human-readable label
	ExternalKey string          `json:"external_key"` // caller-facing unique key (e.g. email)
	Balance     decimal.Decimal `json:"balance"`      // never negative after a completed operation
	CreatedAt   time.Time       `json:"created_at"`
}
