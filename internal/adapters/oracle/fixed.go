// Package oracle holds in-process price sources for paper runs and tests.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/shopspring/decimal"
)

// Fixed serves prices set by the caller and counts reads per symbol.
type Fixed struct {
	mu     sync.Mutex
	prices map[string]domain.Price
	reads  map[string]int
	now    func() time.Time
}

// NewFixed returns an empty Fixed oracle. A nil clock uses time.Now.
func NewFixed(now func() time.Time) *Fixed {
	if now == nil {
		now = time.Now
	}
	return &Fixed{prices: make(map[string]domain.Price), reads: make(map[string]int), now: now}
}

// Set publishes value for symbol.
func (f *Fixed) Set(symbol string, value decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = domain.Price{Symbol: symbol, Value: value, PublishTime: f.now().UTC()}
}

// GetPrice implements ports.PriceOracle.
func (f *Fixed) GetPrice(_ context.Context, symbol string) (domain.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	if !ok {
		return domain.Price{}, fmt.Errorf("oracle.Fixed: %s: %w", symbol, domain.ErrNotFound)
	}
	f.reads[symbol]++
	return p, nil
}

// Reads returns how many times symbol was read.
func (f *Fixed) Reads(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[symbol]
}
