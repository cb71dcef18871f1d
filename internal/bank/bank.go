// Package bank implements the in-memory account registry and the
// transaction rules that must hold under concurrent, unordered request
// processing: unique number issuance, non-negative balances and atomic
// two-account transfers.
package bank

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	accountNumberPrefix = "CH56"
	// First number handed out. Subsequent numbers are strictly increasing,
	// never reused.
	firstAccountNumber = 10_000_000_000_000_000
)

// Bank owns the set of accounts and issues account numbers.
//
// Locking discipline: mu guards the accounts map (structural changes and
// lookups only), each Account carries its own mutex for balance/activity, and
// the number counter is an atomic independent of both. No lock is ever held
// across I/O.
type Bank struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	next     atomic.Int64
}

// NewBank returns an empty registry. Each service process constructs exactly
// one at startup; tests construct a fresh one per case.
func NewBank() *Bank {
	b := &Bank{accounts: make(map[string]*Account)}
	b.next.Store(firstAccountNumber)
	return b
}

// nextNumber issues the next account number. The fetch-and-increment is a
// single atomic step, so concurrent creations never collide.
func (b *Bank) nextNumber() string {
	n := b.next.Add(1) - 1
	return accountNumberPrefix + strconv.FormatInt(n, 10)
}

// CreateAccount allocates a number and inserts a new active account with
// balance 0. Returns the new account number.
func (b *Bank) CreateAccount(owner string) (string, error) {
	acc := &Account{
		number:       b.nextNumber(),
		owner:        owner,
		active:       true,
		lastModified: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[acc.number]; exists {
		return "", ErrAccountCreationFailed
	}
	b.accounts[acc.number] = acc
	return acc.number, nil
}

// Account looks up an account by number. Closed accounts remain retrievable;
// callers must distinguish "not found" from "found but inactive".
func (b *Bank) Account(number string) (*Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, ok := b.accounts[number]
	return acc, ok
}

// ActiveAccountNumbers returns the numbers of all active accounts, sorted.
// Closed accounts are excluded from listings.
func (b *Bank) ActiveAccountNumbers() []string {
	b.mu.RLock()
	numbers := make([]string, 0, len(b.accounts))
	for number, acc := range b.accounts {
		if acc.Active() {
			numbers = append(numbers, number)
		}
	}
	b.mu.RUnlock()

	sort.Strings(numbers)
	return numbers
}

// CloseAccount marks an account inactive. Fails if the number is unknown, the
// account is already inactive, or it still holds a balance — a non-zero
// balance must be settled before closure, otherwise funds would be silently
// discarded.
func (b *Bank) CloseAccount(number string) error {
	acc, ok := b.Account(number)
	if !ok {
		return ErrAccountCloseFailed
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	if !acc.active || acc.balance > 0 {
		return ErrAccountCloseFailed
	}
	acc.active = false
	acc.lastModified = time.Now()
	return nil
}

// Transfer atomically moves amount from one account to another. Both account
// locks are held for the whole check+debit+credit sequence, so no observer
// ever sees a debited-but-not-credited state and the overdraw check cannot be
// invalidated between check and debit.
//
// Locks are acquired in account-number order regardless of transfer direction,
// which rules out deadlock between opposing concurrent transfers.
func (b *Bank) Transfer(fromNumber, toNumber string, amount float64) error {
	if amount < 0 {
		return ErrIllegalArgument
	}

	from, ok := b.Account(fromNumber)
	if !ok {
		return ErrAccountNotFound
	}
	to, ok := b.Account(toNumber)
	if !ok {
		return ErrAccountNotFound
	}

	if from == to {
		// Self-transfer: same checks, balance unchanged.
		from.mu.Lock()
		defer from.mu.Unlock()
		if !from.active {
			return ErrInactiveAccount
		}
		if amount > from.balance {
			return ErrOverdraw
		}
		from.lastModified = time.Now()
		return nil
	}

	first, second := from, to
	if second.number < first.number {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if !from.active || !to.active {
		return ErrInactiveAccount
	}
	if amount > from.balance {
		return ErrOverdraw
	}

	now := time.Now()
	from.balance -= amount
	from.lastModified = now
	to.balance += amount
	to.lastModified = now
	return nil
}
