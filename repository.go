package ledgerxgo

// AccountStore is the durability contract the ledger depends on. It is the
// single source of truth between service invocations; the service never
// caches an account across calls.
//
// GetAccount returns the current durable state including the full statement
// history, or ErrNotFound.
//
// SaveAccount persists the account's new balance together with the
// statements appended since load (acct.Statements[acct.Version:]).
// It is atomic: either the balance and all new statements land, or the
// stored state is unaffected. A store using optimistic concurrency returns
// ErrConflict when the stored version moved under the caller.
type AccountStore interface {
	GetAccount(id string) (*Account, error)
	SaveAccount(acct *Account) error
}
