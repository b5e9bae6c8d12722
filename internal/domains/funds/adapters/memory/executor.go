package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var _ ports.Executor = (*Router)(nil)

// ErrNoContract is returned for calls to an address nothing is mounted at.
var ErrNoContract = errors.New("no contract at target")

// Handler receives calls sent to a mounted contract.
type Handler interface {
	Call(ctx context.Context, target, caller address.Address, data []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, target, caller address.Address, data []byte) error

func (f HandlerFunc) Call(ctx context.Context, target, caller address.Address, data []byte) error {
	return f(ctx, target, caller, data)
}

// Router dispatches fund calls to in-process contract simulators.
type Router struct {
	mu       sync.RWMutex
	handlers map[address.Address]Handler
}

func NewRouter() *Router {
	return &Router{handlers: map[address.Address]Handler{}}
}

// Mount serves calls to target with h.
func (r *Router) Mount(target address.Address, h Handler) {
	r.mu.Lock()
	r.handlers[target] = h
	r.mu.Unlock()
}

func (r *Router) Call(ctx context.Context, fund, target address.Address, data []byte) error {
	r.mu.RLock()
	h, ok := r.handlers[target]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoContract, target)
	}
	return h.Call(ctx, target, fund, data)
}
