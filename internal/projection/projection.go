// Package projection maintains a Redis-cached read view of accounts. It
// consumes the fire-and-forget update broadcasts and refreshes one view
// document per touched account, so subscribers with cached state never have
// to poll the registry.
package projection

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/logger"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/protocol"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/transport"
)

// AccountView is the read-optimised projection of an account.
type AccountView struct {
	AccountNumber string    `json:"accountNumber"`
	Owner         string    `json:"owner"`
	Balance       float64   `json:"balance"`
	Active        bool      `json:"active"`
	UpdatedAt     time.Time `json:"updatedTimestamp"`
}

// AccountFetcher resolves an account number to its current state. The bool
// result distinguishes "not found" from a fetch failure.
type AccountFetcher interface {
	GetAccount(ctx context.Context, number string) (*AccountView, bool, error)
}

// ViewStore is the cache the projector writes into. Satisfied by
// redis.ViewCache[AccountView].
type ViewStore interface {
	Set(ctx context.Context, key string, view *AccountView)
	Delete(ctx context.Context, key string)
}

// Projector applies account update notifications to the view store.
type Projector struct {
	fetcher AccountFetcher
	store   ViewStore
}

func NewProjector(fetcher AccountFetcher, store ViewStore) *Projector {
	return &Projector{fetcher: fetcher, store: store}
}

// Run consumes account numbers from updates until ctx is cancelled or the
// channel closes.
func (p *Projector) Run(ctx context.Context, updates <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case number, ok := <-updates:
			if !ok {
				return
			}
			p.Apply(ctx, number)
		}
	}
}

// Apply refreshes the view of a single account. An unknown account
// invalidates the cached view; a fetch failure leaves the stale view in
// place, the next notification for the account will retry.
func (p *Projector) Apply(ctx context.Context, number string) {
	view, found, err := p.fetcher.GetAccount(ctx, number)
	if err != nil {
		logger.Error("failed to fetch account for projection", err, logger.Fields{"account": number})
		return
	}
	if !found {
		p.store.Delete(ctx, ViewKey(number))
		return
	}
	p.store.Set(ctx, ViewKey(number), view)
}

// ViewKey returns the cache key for an account view.
func ViewKey(number string) string {
	return "account:view:" + number
}

// RPCFetcher fetches account state through the bank RPC protocol.
type RPCFetcher struct {
	Client *transport.Client
}

func (f *RPCFetcher) GetAccount(ctx context.Context, number string) (*AccountView, bool, error) {
	resp, err := f.Client.Call(ctx, protocol.Request{
		ActionID: protocol.ActionGetAccount,
		Args:     []string{number},
	})
	if err != nil {
		return nil, false, err
	}

	switch resp.StatusCode {
	case protocol.StatusOK:
		if len(resp.Data) < 4 {
			return nil, false, fmt.Errorf("malformed account payload: %v", resp.Data)
		}
		balance, err := strconv.ParseFloat(resp.Data[2], 64)
		if err != nil {
			return nil, false, fmt.Errorf("malformed account balance %q: %w", resp.Data[2], err)
		}
		return &AccountView{
			AccountNumber: resp.Data[0],
			Owner:         resp.Data[1],
			Balance:       balance,
			Active:        resp.Data[3] == "1",
			UpdatedAt:     time.Now().UTC(),
		}, true, nil
	case protocol.StatusAccountNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("get account returned status %d", resp.StatusCode)
	}
}
