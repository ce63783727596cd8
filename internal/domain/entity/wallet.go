package entity

import (
	"time"
)

// Wallet holds one user's spendable balance in integer minor currency units.
// Never floating point: every mutation is a signed int64 delta applied inside
// a store transaction, and the balance never goes below zero.
type Wallet struct {
	UserID    string    `json:"user_id" firestore:"userId"`
	Balance   int64     `json:"balance" firestore:"balance"`
	Currency  string    `json:"currency" firestore:"currency"`
	LastTxnAt time.Time `json:"last_txn_at" firestore:"lastTxnAt"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

const (
	LedgerEntryDebit  = "debit"
	LedgerEntryCredit = "credit"
)

// LedgerEntry is the immutable transaction-history record written alongside
// every balance mutation. The entry id doubles as the idempotency key for
// debits, so a replayed debit finds its own record and is not applied twice.
// This log, not the wallet document, is the source of truth for earnings and
// payout reconciliation.
type LedgerEntry struct {
	ID              string    `json:"id" firestore:"id"`
	UserID          string    `json:"user_id" firestore:"userId"`
	Counterparty    string    `json:"counterparty,omitempty" firestore:"counterparty,omitempty"`
	Type            string    `json:"type" firestore:"type"` // debit, credit
	Amount          int64     `json:"amount" firestore:"amount"`
	PreviousBalance int64     `json:"previous_balance" firestore:"previousBalance"`
	NewBalance      int64     `json:"new_balance" firestore:"newBalance"`
	Reason          string    `json:"reason" firestore:"reason"`
	CreatedAt       time.Time `json:"created_at" firestore:"createdAt"`
}
