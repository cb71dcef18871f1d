package bank

import "errors"

// Domain errors. The dispatcher maps each of these to a protocol status code;
// nothing else is allowed to cross the dispatcher boundary.
var (
	// ErrAccountNotFound signals that no account exists under the given number.
	ErrAccountNotFound = errors.New("account does not exist")

	// ErrAccountCreationFailed signals that the registry rejected the insert.
	// Only reachable through a numbering collision, which the counter rules out
	// under normal operation.
	ErrAccountCreationFailed = errors.New("account could not be created")

	// ErrAccountCloseFailed signals that the account is unknown, already
	// inactive, or still holds a balance.
	ErrAccountCloseFailed = errors.New("account could not be closed")

	// ErrInactiveAccount signals a balance mutation against a closed account.
	ErrInactiveAccount = errors.New("inactive account")

	// ErrOverdraw signals a debit exceeding the current balance.
	ErrOverdraw = errors.New("account overdraw")

	// ErrIllegalArgument signals a negative amount.
	ErrIllegalArgument = errors.New("negative amount not allowed")
)
