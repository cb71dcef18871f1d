package bank

import (
	"sync"
	"time"
)

// Account is a single ledger entry. The number is assigned by the Bank and
// never changes; balance and active are only ever touched while mu is held.
//
// The mutex is scoped to one account so that operations on unrelated accounts
// never contend. Transfer in bank.go acquires two of these in account-number
// order.
type Account struct {
	mu sync.Mutex

	number       string
	owner        string
	balance      float64
	active       bool
	lastModified time.Time
}

// Snapshot is a consistent copy of an account's state, safe to read without
// holding the account lock.
type Snapshot struct {
	Number       string
	Owner        string
	Balance      float64
	Active       bool
	LastModified time.Time
}

// Number returns the immutable account number.
func (a *Account) Number() string { return a.number }

// Owner returns the immutable account owner.
func (a *Account) Owner() string { return a.owner }

// Balance returns the current balance.
func (a *Account) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Active reports whether the account still accepts balance mutations.
func (a *Account) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Snapshot returns a copy of the full account state taken under the lock.
func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Number:       a.number,
		Owner:        a.owner,
		Balance:      a.balance,
		Active:       a.active,
		LastModified: a.lastModified,
	}
}

// Deposit credits amount to the account. There is no upper bound on balance.
func (a *Account) Deposit(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return ErrInactiveAccount
	}
	if amount < 0 {
		return ErrIllegalArgument
	}
	a.balance += amount
	a.lastModified = time.Now()
	return nil
}

// Withdraw debits amount from the account. The check order (argument,
// overdraw, activity) is a compatibility contract: a negative amount on an
// inactive account reports ErrIllegalArgument, not ErrInactiveAccount.
func (a *Account) Withdraw(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount < 0 {
		return ErrIllegalArgument
	}
	if amount > a.balance {
		return ErrOverdraw
	}
	if !a.active {
		return ErrInactiveAccount
	}
	a.balance -= amount
	a.lastModified = time.Now()
	return nil
}
