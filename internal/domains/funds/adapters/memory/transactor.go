package memory

import (
	"context"
	"sync"

	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
)

var _ ports.Transactor = (*Transactor)(nil)

// Snapshotter captures its state and returns a func that restores it.
type Snapshotter interface {
	Snapshot() func()
}

// Transactor gives in-memory components all-or-nothing semantics by restoring
// snapshots when the unit of work fails. Units of work run one at a time.
type Transactor struct {
	mu         sync.Mutex
	components []Snapshotter
}

func NewTransactor(components ...Snapshotter) *Transactor {
	return &Transactor{components: components}
}

type txKey struct{}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == t {
		// nested units join the outer one
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	restores := make([]func(), 0, len(t.components))
	for _, c := range t.components {
		restores = append(restores, c.Snapshot())
	}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
