package order

import (
	"context"
	"errors"
	"sync"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"
)

var errBoom = errors.New("boom")

type seqIDs struct {
	mu  sync.Mutex
	ids []string
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

type failingUsers struct{ err error }

func (f failingUsers) Exists(context.Context, string) error { return f.err }

// flakyProducts delegates to a real directory but fails chosen operations.
type flakyProducts struct {
	ProductDirectory
	getErr    map[string]error
	adjustErr map[string]error
	adjusted  []string
	// onAdjust runs before each stock call reaches the directory.
	onAdjust func(id string)
}

func (f *flakyProducts) Get(ctx context.Context, id string) (*catalog.Product, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	return f.ProductDirectory.Get(ctx, id)
}

func (f *flakyProducts) AdjustStock(ctx context.Context, id string, delta int) (*catalog.Product, error) {
	if f.onAdjust != nil {
		f.onAdjust(id)
	}
	if err := f.adjustErr[id]; err != nil {
		return nil, err
	}
	f.adjusted = append(f.adjusted, id)
	return f.ProductDirectory.AdjustStock(ctx, id, delta)
}

type flakyLedger struct {
	PaymentLedger
	err error
}

func (f *flakyLedger) Record(ctx context.Context, e dompay.Entry) error {
	if f.err != nil {
		return f.err
	}
	return f.PaymentLedger.Record(ctx, e)
}

func (f *flakyLedger) ListByOrder(ctx context.Context, orderID string) ([]dompay.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.PaymentLedger.ListByOrder(ctx, orderID)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []sagalog.Entry
}

func (r *captureRecorder) Record(_ context.Context, e *sagalog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *captureRecorder) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, string(e.Status)+":"+e.CurrentStep)
	}
	return out
}
