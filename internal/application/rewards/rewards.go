// Package rewards pays referral balances and eight-hour box prizes.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/arenabet/internal/application/crafting"
	"github.com/alejandrodnm/arenabet/internal/application/engine"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Distributor pays out non-leaderboard rewards.
type Distributor struct {
	rt     *engine.Runtime
	prizes []domain.Prize
	minter *crafting.Minter
}

// New builds the distributor.
func New(rt *engine.Runtime, params domain.Economy, minter *crafting.Minter) *Distributor {
	return &Distributor{rt: rt, prizes: params.EightBoxPrizes, minter: minter}
}

// ClaimReferralReward pays the user's whole referral balance from the
// referral vault. A zero balance is a successful no-op.
func (d *Distributor) ClaimReferralReward(ctx context.Context, user string) (int64, error) {
	var paid int64
	keys := []string{engine.UserKey(user), engine.AccountKey(user), engine.ReferralVaultKey}
	err := d.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, err := engine.LoadConfig(ctx, tx)
		if err != nil {
			return fmt.Errorf("rewards.ClaimReferralReward: %w", err)
		}
		u, err := tx.User(ctx, user)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("rewards.ClaimReferralReward: %w", err)
		}
		if u.ReferralBalance == 0 {
			return nil
		}
		if err := tx.Ledger().Transfer(ctx, cfg.BetToken, cfg.ReferralVault, user, u.ReferralBalance); err != nil {
			return fmt.Errorf("rewards.ClaimReferralReward: %w", err)
		}
		paid = u.ReferralBalance
		u.ReferralBalance = 0
		return tx.SaveUser(ctx, u)
	})
	if err != nil {
		return 0, err
	}
	if paid > 0 {
		slog.Info("rewards: referral claimed", "user", user, "amount", paid)
	}
	return paid, nil
}

// ClaimEightBoxReward grants prize prizeID of box to the user when their stake
// in that box reaches the prize minimum. One claim per user and box.
func (d *Distributor) ClaimEightBoxReward(ctx context.Context, box uint64, user string, prizeID int) (domain.EightBoxClaim, error) {
	if prizeID < 0 || prizeID >= len(d.prizes) {
		return domain.EightBoxClaim{}, fmt.Errorf("rewards.ClaimEightBoxReward: prize %d: %w", prizeID, domain.ErrInvalidParameter)
	}
	prize := d.prizes[prizeID]

	var claim domain.EightBoxClaim
	keys := []string{engine.AccumulatorKey(domain.WindowEightBox, box, user), engine.AccountKey(user)}
	err := d.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, err := engine.LoadConfig(ctx, tx)
		if err != nil {
			return fmt.Errorf("rewards.ClaimEightBoxReward: %w", err)
		}
		acc, err := tx.Accumulator(ctx, domain.WindowEightBox, box, user)
		if err != nil {
			return fmt.Errorf("rewards.ClaimEightBoxReward: %w", err)
		}
		if acc.Claimed {
			return fmt.Errorf("rewards.ClaimEightBoxReward: box %d user %s: %w", box, user, domain.ErrDuplicateEntry)
		}
		if acc.Stake < prize.MinStake {
			return fmt.Errorf("rewards.ClaimEightBoxReward: stake %d below %d: %w", acc.Stake, prize.MinStake, domain.ErrNotEligible)
		}

		if err := tx.Ledger().Mint(ctx, cfg.RewardToken, user, prize.Reward); err != nil {
			return fmt.Errorf("rewards.ClaimEightBoxReward: %w", err)
		}
		md, err := d.minter.Bundle(ctx, tx, user, prize.BundleID)
		if err != nil {
			return fmt.Errorf("rewards.ClaimEightBoxReward: %w", err)
		}
		claim = domain.EightBoxClaim{BoxID: box, PrizeID: prizeID, Reward: prize.Reward, Bundle: md}
		return tx.MarkClaimed(ctx, domain.WindowEightBox, box, user)
	})
	if err != nil {
		return domain.EightBoxClaim{}, err
	}
	slog.Info("rewards: eight box claimed", "box", box, "user", user, "prize", prizeID, "bundle", prize.BundleID)
	return claim, nil
}
