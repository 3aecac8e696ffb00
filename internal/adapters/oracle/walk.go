package oracle

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/shopspring/decimal"
)

// Walk wraps a Fixed oracle and moves every price by a random step on each
// read. The demo mode uses it to resolve arenas without a network feed.
type Walk struct {
	*Fixed
	mu   sync.Mutex
	rng  *rand.Rand
	step decimal.Decimal
}

// NewWalk returns a random-walk oracle seeded with seed; each read moves the
// price by up to step in either direction.
func NewWalk(base *Fixed, step decimal.Decimal, seed uint64) *Walk {
	return &Walk{Fixed: base, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), step: step}
}

// GetPrice returns the current price, then moves it.
func (w *Walk) GetPrice(ctx context.Context, symbol string) (domain.Price, error) {
	p, err := w.Fixed.GetPrice(ctx, symbol)
	if err != nil {
		return domain.Price{}, err
	}
	w.mu.Lock()
	delta := w.step.Mul(decimal.NewFromFloat(w.rng.Float64()*2 - 1)).Round(2)
	w.mu.Unlock()
	w.Fixed.Set(symbol, p.Value.Add(delta))
	return p, nil
}
