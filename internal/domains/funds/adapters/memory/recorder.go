package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var _ ports.EventRecorder = (*Recorder)(nil)

type fundEvent interface {
	FundAddress() address.Address
}

// Recorder keeps ledger events in memory.
type Recorder struct {
	mu     sync.RWMutex
	events []ports.RecordedEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(_ context.Context, events ...domain.Event) error {
	batch := make([]ports.RecordedEvent, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		rec := ports.RecordedEvent{
			ID:         uuid.NewString(),
			Name:       e.EventName(),
			OccurredAt: e.OccurredAt(),
			Payload:    payload,
		}
		if fe, ok := e.(fundEvent); ok {
			rec.Fund = fe.FundAddress()
		}
		batch = append(batch, rec)
	}
	r.mu.Lock()
	r.events = append(r.events, batch...)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) History(_ context.Context, fund address.Address, limit int) ([]ports.RecordedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.RecordedEvent
	for i := len(r.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.events[i].Fund == fund {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

// Names lists recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Snapshot captures the log length; the returned func truncates back to it.
func (r *Recorder) Snapshot() func() {
	r.mu.RLock()
	n := len(r.events)
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		if len(r.events) > n {
			r.events = r.events[:n]
		}
		r.mu.Unlock()
	}
}
