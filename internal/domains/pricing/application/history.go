package application

import (
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
)

// ring keeps the most recent observations in time order.
type ring struct {
	items []domain.Observation
	next  int
	full  bool
}

func newRing(size int) *ring {
	return &ring{items: make([]domain.Observation, size)}
}

func (r *ring) push(obs domain.Observation) {
	r.items[r.next] = obs
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) ordered() []domain.Observation {
	if !r.full {
		return append([]domain.Observation(nil), r.items[:r.next]...)
	}
	out := make([]domain.Observation, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}

// since returns observations in [start, now], preceded by the last one before start if any.
func (r *ring) since(start, now time.Time) []domain.Observation {
	all := r.ordered()
	var (
		out    []domain.Observation
		before *domain.Observation
	)
	for i := range all {
		obs := all[i]
		if obs.At.After(now) {
			break
		}
		if obs.At.Before(start) {
			before = &all[i]
			continue
		}
		out = append(out, obs)
	}
	if before != nil {
		out = append([]domain.Observation{*before}, out...)
	}
	return out
}
