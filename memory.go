package ledgerxgo

import (
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process AccountStore used by tests and local runs.
// Reads hand out copies so callers never alias internal state; a torn view
// of balance vs. statements is impossible because both are copied under the
// same lock. Saves enforce the same version token the Postgres store does.
type MemoryStore struct {
	mu    sync.RWMutex
	accts map[string]*Account
}

var (
	_ AccountStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accts: make(map[string]*Account)}
}

// Put seeds an account with an opening balance. Existing state is replaced;
// intended for provisioning and test setup, not the ledger mutation path.
func (ms *MemoryStore) Put(id string, balance decimal.Decimal) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.accts[id] = &Account{AcctID: id, Balance: balance}
}

func (ms *MemoryStore) GetAccount(id string) (*Account, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	acct, ok := ms.accts[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	return copyAccount(acct), nil
}

func (ms *MemoryStore) SaveAccount(acct *Account) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cur, ok := ms.accts[acct.AcctID]
	if !ok {
		return ErrNotFound{ID: acct.AcctID}
	}
	if cur.Version != acct.Version {
		return ErrConflict{ID: acct.AcctID}
	}

	saved := copyAccount(acct)
	saved.Version = int64(len(saved.Statements))
	ms.accts[acct.AcctID] = saved
	return nil
}

func copyAccount(acct *Account) *Account {
	cp := *acct
	cp.Statements = make([]Statement, len(acct.Statements))
	copy(cp.Statements, acct.Statements)
	return &cp
}
