// Package dispatch maps incoming protocol requests to registry operations and
// domain outcomes to protocol status codes. All domain failures are recovered
// here; nothing propagates to the transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/bank"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/logger"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/protocol"
)

// Notifier broadcasts a change event for an account. Called once per touched
// account after any successful mutating action. Fire-and-forget: outcomes do
// not roll back the mutation, so implementations log their own failures.
type Notifier interface {
	Notify(ctx context.Context, accountNumber string)
}

// Dispatcher is a stateless mapping from (actionId, args) to a response. Safe
// for concurrent use; all shared state lives in the Bank.
type Dispatcher struct {
	bank     *bank.Bank
	notifier Notifier
}

func New(b *bank.Bank, notifier Notifier) *Dispatcher {
	return &Dispatcher{bank: b, notifier: notifier}
}

// Dispatch executes a single request to a terminal outcome. An unknown action
// id yields a bad request without touching the registry. Any panic below this
// point is converted to an internal error response so that one faulty request
// can never take down the consumers serving other requests.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("request handler panicked", nil, logger.Fields{
				"actionId": req.ActionID,
				"args":     req.Args,
				"panic":    fmt.Sprint(r),
			})
			resp = protocol.ErrorInternal
		}
	}()

	switch req.ActionID {
	case protocol.ActionAccountNumbers:
		return d.accountNumbers()
	case protocol.ActionGetAccount:
		return d.getAccount(req)
	case protocol.ActionCreateAccount:
		return d.createAccount(ctx, req)
	case protocol.ActionCloseAccount:
		return d.closeAccount(ctx, req)
	case protocol.ActionTransfer:
		return d.transfer(ctx, req)
	case protocol.ActionDeposit, protocol.ActionWithdraw:
		return d.transaction(ctx, req)
	default:
		return protocol.ErrorBadRequest
	}
}

func (d *Dispatcher) accountNumbers() protocol.Response {
	return protocol.OK(d.bank.ActiveAccountNumbers()...)
}

func (d *Dispatcher) getAccount(req protocol.Request) protocol.Response {
	if len(req.Args) < 1 {
		return protocol.ErrorBadRequest
	}
	acc, ok := d.bank.Account(req.Args[0])
	if !ok {
		return protocol.ErrorAccountNotFound
	}
	return protocol.OK(accountData(acc.Snapshot())...)
}

func (d *Dispatcher) createAccount(ctx context.Context, req protocol.Request) protocol.Response {
	if len(req.Args) < 1 {
		return protocol.ErrorBadRequest
	}
	number, err := d.bank.CreateAccount(req.Args[0])
	if err != nil {
		return errorResponse(err)
	}
	acc, ok := d.bank.Account(number)
	if !ok {
		return protocol.ErrorAccountCreationFailed
	}
	d.notifier.Notify(ctx, number)
	return protocol.OK(accountData(acc.Snapshot())...)
}

func (d *Dispatcher) closeAccount(ctx context.Context, req protocol.Request) protocol.Response {
	if len(req.Args) < 1 {
		return protocol.ErrorBadRequest
	}
	number := req.Args[0]
	if err := d.bank.CloseAccount(number); err != nil {
		return errorResponse(err)
	}
	d.notifier.Notify(ctx, number)
	return protocol.OK()
}

func (d *Dispatcher) transfer(ctx context.Context, req protocol.Request) protocol.Response {
	if len(req.Args) < 3 {
		return protocol.ErrorBadRequest
	}
	from, to := req.Args[0], req.Args[1]
	amount, err := parseAmount(req.Args[2])
	if err != nil {
		return protocol.ErrorBadRequest
	}

	if err := d.bank.Transfer(from, to, amount); err != nil {
		return errorResponse(err)
	}

	fromAcc, _ := d.bank.Account(from)
	toAcc, _ := d.bank.Account(to)
	d.notifier.Notify(ctx, from)
	d.notifier.Notify(ctx, to)
	return protocol.OK(formatAmount(fromAcc.Balance()), formatAmount(toAcc.Balance()))
}

// transaction handles deposit and withdraw, which differ only in the
// registry call.
func (d *Dispatcher) transaction(ctx context.Context, req protocol.Request) protocol.Response {
	if len(req.Args) < 2 {
		return protocol.ErrorBadRequest
	}
	number := req.Args[0]
	amount, err := parseAmount(req.Args[1])
	if err != nil {
		return protocol.ErrorBadRequest
	}

	acc, ok := d.bank.Account(number)
	if !ok {
		return protocol.ErrorAccountNotFound
	}

	if req.ActionID == protocol.ActionDeposit {
		err = acc.Deposit(amount)
	} else {
		err = acc.Withdraw(amount)
	}
	if err != nil {
		return errorResponse(err)
	}

	d.notifier.Notify(ctx, number)
	return protocol.OK(formatAmount(acc.Balance()))
}

// errorResponse maps a domain error to its protocol response. An unrecognised
// error is a programming fault and reported as an internal error.
func errorResponse(err error) protocol.Response {
	switch {
	case errors.Is(err, bank.ErrAccountNotFound):
		return protocol.ErrorAccountNotFound
	case errors.Is(err, bank.ErrAccountCreationFailed):
		return protocol.ErrorAccountCreationFailed
	case errors.Is(err, bank.ErrAccountCloseFailed):
		return protocol.ErrorAccountCloseFailed
	case errors.Is(err, bank.ErrInactiveAccount):
		return protocol.ErrorInactiveAccount
	case errors.Is(err, bank.ErrOverdraw):
		return protocol.ErrorOverdraw
	case errors.Is(err, bank.ErrIllegalArgument):
		return protocol.ErrorIllegalArgument
	default:
		logger.Error("unexpected domain error", err, nil)
		return protocol.ErrorInternal
	}
}

func accountData(s bank.Snapshot) []string {
	activeFlag := "0"
	if s.Active {
		activeFlag = "1"
	}
	return []string{s.Number, s.Owner, formatAmount(s.Balance), activeFlag}
}

// parseAmount parses an amount argument. ParseFloat also accepts "NaN" and
// "Inf", which arithmetic on a balance cannot tolerate (NaN compares false
// against every bound), so non-finite values are rejected here.
func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite amount %q", s)
	}
	return v, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
