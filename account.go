package ledgerxgo

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType tags a statement line as either a deposit or a withdrawal.
// The description is used in error messages and statement rendering only.
type OperationType string

const (
	Deposit  OperationType = "Deposit"
	Withdraw OperationType = "Withdraw"
)

func (op OperationType) Description() string {
	return string(op)
}

// Statement is one immutable line of an account's history: the operation,
// its magnitude, and the balance it produced.
type Statement struct {
	Timestamp time.Time       `json:"timestamp"`
	Op        OperationType   `json:"operationType"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
}

// Account holds a balance and its full ordered history. Statements are
// chronological and append-only; Balance always equals the last statement's
// Balance (or the opening balance when there is none).
//
// Version counts statements already persisted by the store. It is the
// optimistic-concurrency token: a save whose Version does not match the
// stored one fails with ErrConflict. Statements[Version:] are the lines
// appended since load.
type Account struct {
	AcctID     string          `json:"id"`
	Balance    decimal.Decimal `json:"balance"`
	Statements []Statement     `json:"statements"`
	Version    int64           `json:"-"`
}

// append records op applied at ts, moving the balance to newBal.
func (a *Account) append(ts time.Time, op OperationType, amount, newBal decimal.Decimal) {
	a.Balance = newBal
	a.Statements = append(a.Statements, Statement{
		Timestamp: ts,
		Op:        op,
		Amount:    amount,
		Balance:   newBal,
	})
}
