package dispatch

import (
	"context"
	"reflect"
	"testing"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/bank"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/protocol"
)

// ---- mock notifier ----

type mockNotifier struct {
	notifyFn func(ctx context.Context, accountNumber string)
	notified []string
}

func (m *mockNotifier) Notify(ctx context.Context, accountNumber string) {
	if m.notifyFn != nil {
		m.notifyFn(ctx, accountNumber)
	}
	m.notified = append(m.notified, accountNumber)
}

// ---- helpers ----

func newTestDispatcher(t *testing.T) (*Dispatcher, *mockNotifier) {
	t.Helper()
	n := &mockNotifier{}
	return New(bank.NewBank(), n), n
}

func createAccount(t *testing.T, d *Dispatcher, owner string) string {
	t.Helper()
	resp := d.Dispatch(context.Background(), protocol.Request{
		ActionID: protocol.ActionCreateAccount,
		Args:     []string{owner},
	})
	if resp.StatusCode != protocol.StatusOK {
		t.Fatalf("create account status=%d", resp.StatusCode)
	}
	return resp.Data[0]
}

func dispatch(d *Dispatcher, actionID int, args ...string) protocol.Response {
	return d.Dispatch(context.Background(), protocol.Request{ActionID: actionID, Args: args})
}

// ---- tests ----

func TestDispatchBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		actionID int
		args     []string
	}{
		{"unknown action", 99, nil},
		{"zero action", 0, nil},
		{"get account missing number", protocol.ActionGetAccount, nil},
		{"create account missing owner", protocol.ActionCreateAccount, nil},
		{"close account missing number", protocol.ActionCloseAccount, nil},
		{"transfer missing amount", protocol.ActionTransfer, []string{"a", "b"}},
		{"transfer unparsable amount", protocol.ActionTransfer, []string{"a", "b", "ten"}},
		{"deposit missing amount", protocol.ActionDeposit, []string{"a"}},
		{"deposit unparsable amount", protocol.ActionDeposit, []string{"a", "x"}},
		{"withdraw unparsable amount", protocol.ActionWithdraw, []string{"a", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, n := newTestDispatcher(t)
			resp := dispatch(d, tt.actionID, tt.args...)
			if resp.StatusCode != protocol.StatusBadRequest {
				t.Fatalf("status=%d want=%d", resp.StatusCode, protocol.StatusBadRequest)
			}
			if len(n.notified) != 0 {
				t.Fatalf("bad request published notifications: %v", n.notified)
			}
		})
	}
}

func TestCreateAccountAction(t *testing.T) {
	d, n := newTestDispatcher(t)

	resp := dispatch(d, protocol.ActionCreateAccount, "Alice")
	if resp.StatusCode != protocol.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if len(resp.Data) != 4 {
		t.Fatalf("data=%v want 4 fields", resp.Data)
	}
	number := resp.Data[0]
	if resp.Data[1] != "Alice" || resp.Data[2] != "0" || resp.Data[3] != "1" {
		t.Fatalf("data=%v want [number Alice 0 1]", resp.Data)
	}
	if !reflect.DeepEqual(n.notified, []string{number}) {
		t.Fatalf("notified=%v want [%s]", n.notified, number)
	}
}

func TestGetAccountAction(t *testing.T) {
	d, n := newTestDispatcher(t)
	number := createAccount(t, d, "Alice")
	n.notified = nil

	resp := dispatch(d, protocol.ActionGetAccount, number)
	if resp.StatusCode != protocol.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	want := []string{number, "Alice", "0", "1"}
	if !reflect.DeepEqual(resp.Data, want) {
		t.Fatalf("data=%v want=%v", resp.Data, want)
	}

	resp = dispatch(d, protocol.ActionGetAccount, "CH560")
	if resp.StatusCode != protocol.StatusAccountNotFound {
		t.Fatalf("unknown account status=%d want=%d", resp.StatusCode, protocol.StatusAccountNotFound)
	}
	if len(n.notified) != 0 {
		t.Fatalf("read-only action published notifications: %v", n.notified)
	}
}

func TestAccountNumbersAction(t *testing.T) {
	d, n := newTestDispatcher(t)

	resp := dispatch(d, protocol.ActionAccountNumbers)
	if resp.StatusCode != protocol.StatusOK || len(resp.Data) != 0 {
		t.Fatalf("empty bank: status=%d data=%v", resp.StatusCode, resp.Data)
	}

	first := createAccount(t, d, "Alice")
	second := createAccount(t, d, "Bob")
	if resp := dispatch(d, protocol.ActionCloseAccount, second); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("close status=%d", resp.StatusCode)
	}
	n.notified = nil

	resp = dispatch(d, protocol.ActionAccountNumbers)
	if !reflect.DeepEqual(resp.Data, []string{first}) {
		t.Fatalf("data=%v want=[%s]", resp.Data, first)
	}
	if len(n.notified) != 0 {
		t.Fatalf("listing published notifications: %v", n.notified)
	}
}

func TestCloseAccountAction(t *testing.T) {
	d, n := newTestDispatcher(t)
	number := createAccount(t, d, "Alice")

	if resp := dispatch(d, protocol.ActionDeposit, number, "10"); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("deposit status=%d", resp.StatusCode)
	}
	n.notified = nil

	resp := dispatch(d, protocol.ActionCloseAccount, number)
	if resp.StatusCode != protocol.StatusAccountCloseFailed {
		t.Fatalf("close with balance status=%d want=%d", resp.StatusCode, protocol.StatusAccountCloseFailed)
	}
	if len(n.notified) != 0 {
		t.Fatalf("failed close published notifications: %v", n.notified)
	}

	if resp := dispatch(d, protocol.ActionWithdraw, number, "10"); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("withdraw status=%d", resp.StatusCode)
	}
	n.notified = nil

	resp = dispatch(d, protocol.ActionCloseAccount, number)
	if resp.StatusCode != protocol.StatusOK {
		t.Fatalf("close status=%d", resp.StatusCode)
	}
	if len(resp.Data) != 0 {
		t.Fatalf("close data=%v want empty", resp.Data)
	}
	if !reflect.DeepEqual(n.notified, []string{number}) {
		t.Fatalf("notified=%v want=[%s]", n.notified, number)
	}
}

func TestTransferAction(t *testing.T) {
	d, n := newTestDispatcher(t)
	from := createAccount(t, d, "Alice")
	to := createAccount(t, d, "Bob")
	if resp := dispatch(d, protocol.ActionDeposit, from, "100"); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("deposit status=%d", resp.StatusCode)
	}
	n.notified = nil

	resp := dispatch(d, protocol.ActionTransfer, from, to, "30")
	if resp.StatusCode != protocol.StatusOK {
		t.Fatalf("transfer status=%d", resp.StatusCode)
	}
	want := []string{"70", "30"}
	if !reflect.DeepEqual(resp.Data, want) {
		t.Fatalf("data=%v want=%v", resp.Data, want)
	}
	if !reflect.DeepEqual(n.notified, []string{from, to}) {
		t.Fatalf("notified=%v want=[%s %s]", n.notified, from, to)
	}
}

func TestTransferActionErrors(t *testing.T) {
	d, n := newTestDispatcher(t)
	from := createAccount(t, d, "Alice")
	to := createAccount(t, d, "Bob")
	closed := createAccount(t, d, "Carol")
	if resp := dispatch(d, protocol.ActionDeposit, from, "100"); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("deposit status=%d", resp.StatusCode)
	}
	if resp := dispatch(d, protocol.ActionCloseAccount, closed); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("close status=%d", resp.StatusCode)
	}

	tests := []struct {
		name       string
		args       []string
		wantStatus int
	}{
		{"overdraw", []string{from, to, "150"}, protocol.StatusOverdraw},
		{"negative amount", []string{from, to, "-1"}, protocol.StatusIllegalArgument},
		{"inactive endpoint", []string{from, closed, "10"}, protocol.StatusInactiveAccount},
		{"unknown endpoint", []string{from, "CH560", "10"}, protocol.StatusAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n.notified = nil
			resp := dispatch(d, protocol.ActionTransfer, tt.args...)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tt.wantStatus)
			}
			if len(n.notified) != 0 {
				t.Fatalf("failed transfer published notifications: %v", n.notified)
			}
		})
	}
}

func TestDepositWithdrawActions(t *testing.T) {
	d, n := newTestDispatcher(t)
	number := createAccount(t, d, "Alice")
	n.notified = nil

	resp := dispatch(d, protocol.ActionDeposit, number, "50")
	if resp.StatusCode != protocol.StatusOK || !reflect.DeepEqual(resp.Data, []string{"50"}) {
		t.Fatalf("deposit status=%d data=%v", resp.StatusCode, resp.Data)
	}
	resp = dispatch(d, protocol.ActionWithdraw, number, "20")
	if resp.StatusCode != protocol.StatusOK || !reflect.DeepEqual(resp.Data, []string{"30"}) {
		t.Fatalf("withdraw status=%d data=%v", resp.StatusCode, resp.Data)
	}
	if !reflect.DeepEqual(n.notified, []string{number, number}) {
		t.Fatalf("notified=%v want two notifications for %s", n.notified, number)
	}

	tests := []struct {
		name       string
		actionID   int
		args       []string
		wantStatus int
	}{
		{"deposit unknown account", protocol.ActionDeposit, []string{"CH560", "10"}, protocol.StatusAccountNotFound},
		{"withdraw unknown account", protocol.ActionWithdraw, []string{"CH560", "10"}, protocol.StatusAccountNotFound},
		{"withdraw overdraw", protocol.ActionWithdraw, []string{number, "1000"}, protocol.StatusOverdraw},
		{"deposit negative", protocol.ActionDeposit, []string{number, "-5"}, protocol.StatusIllegalArgument},
		{"withdraw negative", protocol.ActionWithdraw, []string{number, "-5"}, protocol.StatusIllegalArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n.notified = nil
			resp := dispatch(d, tt.actionID, tt.args...)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tt.wantStatus)
			}
			if len(n.notified) != 0 {
				t.Fatalf("failed transaction published notifications: %v", n.notified)
			}
		})
	}
}

// ParseFloat accepts "NaN" and "Inf"; letting those through would poison a
// balance, so every non-finite amount must bounce as a bad request with the
// account untouched.
func TestNonFiniteAmountsRejected(t *testing.T) {
	d, n := newTestDispatcher(t)
	number := createAccount(t, d, "Alice")
	other := createAccount(t, d, "Bob")
	if resp := dispatch(d, protocol.ActionDeposit, number, "100"); resp.StatusCode != protocol.StatusOK {
		t.Fatalf("deposit status=%d", resp.StatusCode)
	}
	n.notified = nil

	for _, amount := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity"} {
		for _, tt := range []struct {
			name     string
			actionID int
			args     []string
		}{
			{"deposit", protocol.ActionDeposit, []string{number, amount}},
			{"withdraw", protocol.ActionWithdraw, []string{number, amount}},
			{"transfer", protocol.ActionTransfer, []string{number, other, amount}},
		} {
			t.Run(tt.name+" "+amount, func(t *testing.T) {
				resp := dispatch(d, tt.actionID, tt.args...)
				if resp.StatusCode != protocol.StatusBadRequest {
					t.Fatalf("status=%d want=%d", resp.StatusCode, protocol.StatusBadRequest)
				}
			})
		}
	}

	if len(n.notified) != 0 {
		t.Fatalf("rejected amounts published notifications: %v", n.notified)
	}
	resp := dispatch(d, protocol.ActionGetAccount, number)
	if !reflect.DeepEqual(resp.Data, []string{number, "Alice", "100", "1"}) {
		t.Fatalf("balance changed by rejected amounts: %v", resp.Data)
	}
}

// A fault below the dispatcher must surface as an internal error response,
// never as a panic reaching the transport.
func TestDispatchRecoversPanic(t *testing.T) {
	b := bank.NewBank()
	n := &mockNotifier{notifyFn: func(context.Context, string) { panic("broker gone") }}
	d := New(b, n)

	resp := dispatch(d, protocol.ActionCreateAccount, "Alice")
	if resp.StatusCode != protocol.StatusInternalError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, protocol.StatusInternalError)
	}

	// Subsequent requests keep working.
	n.notifyFn = nil
	resp = dispatch(d, protocol.ActionAccountNumbers)
	if resp.StatusCode != protocol.StatusOK {
		t.Fatalf("follow-up status=%d", resp.StatusCode)
	}
}
