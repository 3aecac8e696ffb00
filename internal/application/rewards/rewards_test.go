package rewards_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/arenabet/internal/application/apptest"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var box = domain.BucketID(domain.WindowEightBox, apptest.Start)

func TestClaimEightBoxReward(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.OpenArena(t, 1, false)
	h.Bet(t, 1, "whale", domain.SideUp, 150_000_000)

	_, err := h.App.ClaimEightBoxReward(ctx, box, "whale", 3)
	assert.ErrorIs(t, err, domain.ErrNotEligible)
	_, err = h.App.ClaimEightBoxReward(ctx, box, "whale", 9)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = h.App.ClaimEightBoxReward(ctx, box, "nobody", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	claim, err := h.App.ClaimEightBoxReward(ctx, box, "whale", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), claim.Reward)
	assert.Equal(t, "BUNDLE 4", claim.Bundle.Name)
	assert.Equal(t, "whale", claim.Bundle.Owner)
	assert.NotEmpty(t, claim.Bundle.EditionAddress)
	assert.Equal(t, int64(50), h.Balance(t, apptest.RewardToken, "whale"))
	assert.Equal(t, int64(1), h.Balance(t, claim.Bundle.Mint, "whale"))

	_, err = h.App.ClaimEightBoxReward(ctx, box, "whale", 0)
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
}

func TestEightBoxIsPerBox(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.OpenArena(t, 1, false)
	h.Bet(t, 1, "alice", domain.SideUp, 20_000_000)

	_, err := h.App.ClaimEightBoxReward(ctx, box+1, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	claim, err := h.App.ClaimEightBoxReward(ctx, box, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, "BUNDLE 1", claim.Bundle.Name)
}

func TestClaimReferralWithNothingOwed(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	paid, err := h.App.ClaimReferralReward(ctx, "stranger")
	require.NoError(t, err)
	assert.Zero(t, paid)

	h.OpenArena(t, 1, false)
	h.Bet(t, 1, "alice", domain.SideUp, 10)
	paid, err = h.App.ClaimReferralReward(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, paid)
	assert.Zero(t, h.Balance(t, apptest.BetToken, apptest.ReferralVault))
}

func TestReferralClaimableWhileArenaOpen(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.Fund(t, apptest.Treasury, 100)
	h.OpenArena(t, 1, false)
	h.Fund(t, "alice", 2000)

	_, err := h.App.PlaceBet(ctx, apptest.BetRequest(1, "alice", domain.SideUp, 1000, "rita"))
	require.NoError(t, err)
	paid, err := h.App.ClaimReferralReward(ctx, "rita")
	require.NoError(t, err)
	assert.Equal(t, int64(100), paid)

	// treasury vacío: la segunda apuesta no acredita nada
	h.OpenArena(t, 2, false)
	bet, err := h.App.PlaceBet(ctx, apptest.BetRequest(2, "alice", domain.SideUp, 1000, "rita"))
	require.NoError(t, err)
	assert.Zero(t, bet.ReferralFee)
	paid, err = h.App.ClaimReferralReward(ctx, "rita")
	require.NoError(t, err)
	assert.Zero(t, paid)
	assert.Zero(t, h.Balance(t, apptest.BetToken, apptest.ReferralVault))
}
