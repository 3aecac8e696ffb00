package ports

import (
	"context"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// PriceOracle devuelve el precio actual de un activo.
type PriceOracle interface {
	// GetPrice returns the latest observation for symbol.
	// Implementations return an error wrapping domain.ErrNotFound for unknown symbols.
	GetPrice(ctx context.Context, symbol string) (domain.Price, error)
}

// EntropySource produces the random values used to open bundles.
type EntropySource interface {
	// Draw returns n values. Each call reads its upstream exactly once.
	Draw(ctx context.Context, n int) ([]uint64, error)
}
