package ports

import (
	"context"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// TokenLedger moves fungible balances, including single-unit collectibles.
// Amounts are non-negative base units; a zero amount is a no-op.
type TokenLedger interface {
	Balance(ctx context.Context, token, account string) (int64, error)
	Mint(ctx context.Context, token, to string, amount int64) error
	// Transfer fails with domain.ErrInsufficientFunds when from cannot cover amount.
	Transfer(ctx context.Context, token, from, to string, amount int64) error
	Burn(ctx context.Context, token, from string, amount int64) error
}

// MetadataRegistry records collectible metadata and editions.
type MetadataRegistry interface {
	// CreateMetadata stores md, deriving its holder and metadata addresses.
	CreateMetadata(ctx context.Context, md domain.Metadata) (domain.Metadata, error)
	// CreateEdition freezes supply of mint at one and returns the edition address.
	CreateEdition(ctx context.Context, mint string) (string, error)
	Metadata(ctx context.Context, mint string) (domain.Metadata, error)
}
