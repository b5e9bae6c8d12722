package application

import (
	"context"
	"sync"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// fundLocks serializes entrypoints per fund. A call that re-enters a fund it is
// already inside of, through the context it was handed, fails instead of
// deadlocking.
type fundLocks struct {
	mu    sync.Mutex
	locks map[address.Address]*sync.Mutex
}

type heldKey struct{}

// held is the chain of funds entered by the current call.
type held struct {
	fund   address.Address
	parent *held
}

func (h *held) contains(fund address.Address) bool {
	for n := h; n != nil; n = n.parent {
		if n.fund == fund {
			return true
		}
	}
	return false
}

func (l *fundLocks) get(fund address.Address) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = map[address.Address]*sync.Mutex{}
	}
	m, ok := l.locks[fund]
	if !ok {
		m = &sync.Mutex{}
		l.locks[fund] = m
	}
	return m
}

// enter takes the lock of fund for the whole entrypoint.
func (l *fundLocks) enter(ctx context.Context, fund address.Address) (context.Context, func(), error) {
	parent, _ := ctx.Value(heldKey{}).(*held)
	if parent.contains(fund) {
		return ctx, func() {}, domain.ErrReentrantCall.With("%s", fund)
	}
	m := l.get(fund)
	m.Lock()
	return context.WithValue(ctx, heldKey{}, &held{fund: fund, parent: parent}), m.Unlock, nil
}
