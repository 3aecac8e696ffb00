package crafting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
	"github.com/google/uuid"
)

const bundleIDAttr = "bundle_id"

// Minter creates single-unit collectibles inside the caller's transaction.
// Leaderboard and eight-hour box claims use it to grant bonus bundles.
type Minter struct {
	params domain.Economy
	newID  func() string
	now    func() time.Time
}

// NewMinter builds a Minter. A nil newID uses random UUIDs.
func NewMinter(params domain.Economy, newID func() string, now func() time.Time) *Minter {
	if newID == nil {
		newID = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &Minter{params: params, newID: newID, now: now}
}

// Bundle mints bundle bundleID to owner.
func (m *Minter) Bundle(ctx context.Context, tx ports.Tx, owner string, bundleID int) (domain.Metadata, error) {
	spec, err := m.params.Bundle(bundleID)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("crafting.Bundle: %w", err)
	}
	md := domain.Metadata{
		Name:    spec.Name,
		Symbol:  domain.BundleSymbol,
		URI:     spec.URI,
		Creator: domain.BundleMinter,
		Attributes: map[string]string{
			bundleIDAttr:   strconv.Itoa(bundleID),
			"reward_count": strconv.Itoa(spec.RewardCount),
		},
	}
	return m.mint(ctx, tx, owner, md)
}

// Nft mints one main NFT to owner.
func (m *Minter) Nft(ctx context.Context, tx ports.Tx, owner string) (domain.Metadata, error) {
	md := domain.Metadata{
		Name:    domain.NftName,
		Symbol:  domain.NftSymbol,
		URI:     m.params.NftURI,
		Creator: domain.NftMinter,
	}
	return m.mint(ctx, tx, owner, md)
}

func (m *Minter) mint(ctx context.Context, tx ports.Tx, owner string, md domain.Metadata) (domain.Metadata, error) {
	md.Mint = m.newID()
	md.Owner = owner
	md.CreatedAt = m.now().UTC().Truncate(time.Second)

	if err := tx.Ledger().Mint(ctx, md.Mint, owner, 1); err != nil {
		return domain.Metadata{}, fmt.Errorf("crafting.mint %s: %w", md.Name, err)
	}
	created, err := tx.Registry().CreateMetadata(ctx, md)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("crafting.mint %s: %w", md.Name, err)
	}
	edition, err := tx.Registry().CreateEdition(ctx, created.Mint)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("crafting.mint %s: %w", md.Name, err)
	}
	created.EditionAddress = edition
	return created, nil
}
