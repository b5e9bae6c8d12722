package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

type record struct {
	fund     *domain.Fund
	metadata projection.Metadata
}

// Repository is an in-memory fund persistence adapter.
type Repository struct {
	mu    sync.RWMutex
	funds map[address.Address]record
	now   func() time.Time
}

func NewRepository() *Repository {
	return &Repository{funds: map[address.Address]record{}, now: time.Now}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func (r *Repository) Save(_ context.Context, fund *domain.Fund) (*projection.Projection[*domain.Fund], error) {
	if fund == nil {
		return nil, errors.New("fund is nil")
	}
	clone := fund.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := r.funds[clone.Address].metadata.Touch(r.now())
	r.funds[clone.Address] = record{fund: clone, metadata: meta}
	return projection.New(clone.Clone(), meta), nil
}

func (r *Repository) Get(_ context.Context, fund address.Address) (*projection.Projection[*domain.Fund], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.funds[fund]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return projection.New(rec.fund.Clone(), rec.metadata), nil
}

// List returns funds ordered by creation time.
func (r *Repository) List(_ context.Context) ([]*projection.Projection[*domain.Fund], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*projection.Projection[*domain.Fund], 0, len(r.funds))
	for _, rec := range r.funds {
		list = append(list, projection.New(rec.fund.Clone(), rec.metadata))
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].Entity, list[j].Entity
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Address.String() < b.Address.String()
	})
	return list, nil
}

// Snapshot captures every stored fund; the returned func restores them.
func (r *Repository) Snapshot() func() {
	r.mu.RLock()
	saved := make(map[address.Address]record, len(r.funds))
	for k, v := range r.funds {
		saved[k] = v
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.funds = saved
		r.mu.Unlock()
	}
}
