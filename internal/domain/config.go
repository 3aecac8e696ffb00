package domain

import (
	"fmt"
	"time"
)

// GlobalConfig is the platform-wide configuration set once by Initialize.
type GlobalConfig struct {
	Admin         string   `json:"admin"`
	Treasury      string   `json:"treasury"`
	Escrow        string   `json:"escrow"`
	ReferralVault string   `json:"referral_vault"`
	BetToken      string   `json:"bet_token"`
	RewardToken   string   `json:"reward_token"`
	ArenaSymbol   string   `json:"arena_symbol"`
	EntropyFeeds  []string `json:"entropy_feeds"`

	PlatformFeeBps int64 `json:"platform_fee_bps"`
	ReferralFeeBps int64 `json:"referral_fee_bps"`

	InitializedAt time.Time `json:"initialized_at"`
}

// Validate checks required accounts and fee bounds.
func (c GlobalConfig) Validate() error {
	for name, v := range map[string]string{
		"admin":          c.Admin,
		"treasury":       c.Treasury,
		"escrow":         c.Escrow,
		"referral_vault": c.ReferralVault,
		"bet_token":      c.BetToken,
		"reward_token":   c.RewardToken,
		"arena_symbol":   c.ArenaSymbol,
	} {
		if v == "" {
			return fmt.Errorf("global config: %s empty: %w", name, ErrInvalidParameter)
		}
	}
	if c.PlatformFeeBps < 0 || c.ReferralFeeBps < 0 || c.PlatformFeeBps+c.ReferralFeeBps > FeeDenominator {
		return fmt.Errorf("global config: fees %d+%d bps: %w", c.PlatformFeeBps, c.ReferralFeeBps, ErrInvalidParameter)
	}
	if c.Escrow == c.Treasury || c.Escrow == c.ReferralVault {
		return fmt.Errorf("global config: escrow shares an account: %w", ErrInvalidParameter)
	}
	return nil
}

// Economy holds the reward and crafting tables loaded at boot.
type Economy struct {
	Tiers          map[WindowKind]TierTable
	EightBoxPrizes []Prize
	Bundles        []BundleSpec
	NftCost        int64
	NftURI         string
	// BurnBps is the share of a purchase price burned instead of sent to treasury.
	BurnBps int64
}

// Bundle returns the spec of bundle id.
func (e Economy) Bundle(id int) (BundleSpec, error) {
	if id < 0 || id >= len(e.Bundles) {
		return BundleSpec{}, fmt.Errorf("bundle %d: %w", id, ErrInvalidParameter)
	}
	return e.Bundles[id], nil
}

// Validate checks every table.
func (e Economy) Validate() error {
	for _, k := range RankedKinds {
		t, ok := e.Tiers[k]
		if !ok {
			return fmt.Errorf("economy: no tiers for %s: %w", k, ErrInvalidParameter)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("economy %s: %w", k, err)
		}
		if _, err := e.Bundle(t.BonusBundle); err != nil {
			return fmt.Errorf("economy %s bonus: %w", k, err)
		}
	}
	for i, b := range e.Bundles {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("economy bundle %d: %w", i, err)
		}
	}
	for i, p := range e.EightBoxPrizes {
		if _, err := e.Bundle(p.BundleID); err != nil {
			return fmt.Errorf("economy prize %d: %w", i, err)
		}
	}
	if e.BurnBps < 0 || e.BurnBps > FeeDenominator || e.NftCost < 0 {
		return fmt.Errorf("economy: burn %d bps cost %d: %w", e.BurnBps, e.NftCost, ErrInvalidParameter)
	}
	return nil
}

// DefaultEconomy returns the stock reward and crafting tables.
func DefaultEconomy() Economy {
	return Economy{
		Tiers: map[WindowKind]TierTable{
			WindowHour: {
				Boundaries:  []int{1, 2, 3, 5, 10},
				Rewards:     []int64{428, 749, 535, 107, 42},
				ClaimPeriod: time.Hour,
			},
			WindowDay: {
				Boundaries:  []int{1, 2, 3, 5, 10, 25, 50},
				Rewards:     []int64{10273, 15410, 10273, 2568, 1027, 171, 102},
				ClaimPeriod: 24 * time.Hour,
			},
			WindowWeek: {
				Boundaries:  []int{1, 2, 3, 5, 10, 25, 50, 100, 250},
				Rewards:     []int64{32363, 43150, 21575, 10787, 4315, 1438, 863, 431, 107},
				ClaimPeriod: 7 * 24 * time.Hour,
			},
		},
		EightBoxPrizes: []Prize{
			{MinStake: 20_000_000, Reward: 10, BundleID: 0},
			{MinStake: 100_000_000, Reward: 50, BundleID: 3},
			{MinStake: 400_000_000, Reward: 200, BundleID: 4},
			{MinStake: 1_000_000_000, Reward: 500, BundleID: 5},
		},
		Bundles: []BundleSpec{
			{Name: "BUNDLE 1", Cost: 4000, RewardCount: 2, Rates: [9]uint32{2250, 4500, 6750, 9000, 9330, 9660, 9900, 9950, 10000}},
			{Name: "BUNDLE 2", Cost: 8000, RewardCount: 5, Rates: [9]uint32{2250, 4500, 6750, 9000, 9330, 9660, 9900, 9950, 10000}},
			{Name: "BUNDLE 3", Cost: 15000, RewardCount: 2, Rates: [9]uint32{1500, 3000, 4500, 6000, 7300, 8600, 9900, 9950, 10000}},
			{Name: "BUNDLE 4", Cost: 30000, RewardCount: 5, Rates: [9]uint32{1500, 3000, 4500, 6000, 7300, 8600, 9900, 9950, 10000}},
			{Name: "BUNDLE 5", Cost: 40000, RewardCount: 2, Rates: [9]uint32{800, 1600, 2400, 3200, 5300, 7400, 9500, 9750, 10000}},
			{Name: "BUNDLE 6", Cost: 80000, RewardCount: 5, Rates: [9]uint32{800, 1600, 2400, 3200, 5300, 7400, 9500, 9750, 10000}},
		},
		NftCost: 1_500_000,
		BurnBps: 2000,
	}
}
