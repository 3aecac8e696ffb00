package domain

import (
	"fmt"
	"time"
)

const (
	// FragmentKinds is how many distinct fragments make a full set.
	FragmentKinds = 9
	// RateDivider bounds the roll compared against cumulative fragment rates.
	RateDivider = 10_001

	BundleMinter = "bundle-minter"
	NftMinter    = "nft-minter"

	NftName   = "FEEL Main NFT"
	NftSymbol = "FEL"
	// BundleSymbol is the symbol every bundle collectible carries.
	BundleSymbol = "BDL"
)

// FragmentToken is the fungible token name of fragment kind k (1-based).
func FragmentToken(k int) string { return fmt.Sprintf("FRAGMENT%d", k) }

// ValidFragment reports whether k names a fragment kind.
func ValidFragment(k int) bool { return k >= 1 && k <= FragmentKinds }

// BundleSpec describes one purchasable bundle.
type BundleSpec struct {
	Name        string
	URI         string
	Cost        int64
	RewardCount int
	// Rates are cumulative thresholds over [0, RateDivider), one per fragment kind.
	Rates [FragmentKinds]uint32
}

// Validate checks that the cumulative rates never decrease and cover the roll range.
func (b BundleSpec) Validate() error {
	var prev uint32
	for i, r := range b.Rates {
		if r < prev {
			return fmt.Errorf("bundle %q: rate %d decreases: %w", b.Name, i, ErrInvalidParameter)
		}
		prev = r
	}
	if prev < RateDivider-1 {
		return fmt.Errorf("bundle %q: rates end at %d: %w", b.Name, prev, ErrInvalidParameter)
	}
	if b.RewardCount <= 0 || b.Cost < 0 {
		return fmt.Errorf("bundle %q: bad count or cost: %w", b.Name, ErrInvalidParameter)
	}
	return nil
}

// PickFragment maps an entropy value to a fragment kind (1-based) through the
// cumulative rate table.
func PickFragment(rates [FragmentKinds]uint32, entropy uint64) int {
	roll := uint32(entropy % RateDivider)
	for i, r := range rates {
		if r >= roll {
			return i + 1
		}
	}
	return FragmentKinds
}

// NftBuild counts full fragment sets burned and not yet turned into an NFT.
type NftBuild struct {
	UserID    string
	Pending   int
	UpdatedAt time.Time
}

// Metadata is the registry record of a minted collectible.
type Metadata struct {
	Mint       string
	Name       string
	Symbol     string
	URI        string
	Creator    string
	Owner      string
	Attributes map[string]string

	HolderAccount   string
	MetadataAddress string
	EditionAddress  string
	CreatedAt       time.Time
}

// BundleOpening reports the fragments drawn from an opened bundle.
type BundleOpening struct {
	Mint      string
	BundleID  int
	Fragments []int
}
