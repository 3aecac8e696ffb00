package crafting_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/arenabet/internal/application/apptest"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintKinds(t *testing.T, h *apptest.Harness, user string, kinds ...int) {
	t.Helper()
	for _, k := range kinds {
		require.NoError(t, h.App.MintFragment(context.Background(), apptest.Admin, user, k))
	}
}

func TestBuildNftFromFullSet(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	mintKinds(t, h, "alice", 1, 2, 3, 4, 5, 6, 7, 8)

	_, err := h.App.BurnFragments(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrIncompleteSet)
	assert.Equal(t, int64(1), h.Balance(t, domain.FragmentToken(1), "alice"), "failed burn keeps fragments")

	mintKinds(t, h, "alice", 9)
	build, err := h.App.BurnFragments(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, build.Pending)
	for k := 1; k <= domain.FragmentKinds; k++ {
		assert.Zero(t, h.Balance(t, domain.FragmentToken(k), "alice"))
	}

	md, err := h.App.BuildNft(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.NftName, md.Name)
	assert.Equal(t, domain.NftSymbol, md.Symbol)
	assert.Equal(t, domain.NftMinter, md.Creator)
	assert.Equal(t, int64(1), h.Balance(t, md.Mint, "alice"))

	_, err = h.App.BuildNft(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingBuildsStack(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	for range 2 {
		mintKinds(t, h, "alice", 1, 2, 3, 4, 5, 6, 7, 8, 9)
		_, err := h.App.BurnFragments(ctx, "alice")
		require.NoError(t, err)
	}

	first, err := h.App.BuildNft(ctx, "alice")
	require.NoError(t, err)
	second, err := h.App.BuildNft(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.Mint, second.Mint)
	assert.NotEqual(t, first.EditionAddress, second.EditionAddress)

	_, err = h.App.BuildNft(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMintFragmentChecks(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.App.MintFragment(ctx, "mallory", "alice", 1), domain.ErrUnauthorized)
	assert.ErrorIs(t, h.App.MintFragment(ctx, apptest.Admin, "alice", 0), domain.ErrInvalidParameter)
	assert.ErrorIs(t, h.App.MintFragment(ctx, apptest.Admin, "alice", 10), domain.ErrInvalidParameter)
	assert.Zero(t, h.Balance(t, domain.FragmentToken(1), "alice"))
}

func TestBuyAndOpenBundle(t *testing.T) {
	h := apptest.New(t, func(s *apptest.Setup) { s.Entropy = []uint64{0, 2251} })
	ctx := context.Background()
	h.FundRewards(t, "alice", 4000)

	md, err := h.App.BuyBundle(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, "BUNDLE 1", md.Name)
	assert.Equal(t, domain.BundleSymbol, md.Symbol)
	assert.Zero(t, h.Balance(t, apptest.RewardToken, "alice"))
	assert.Equal(t, int64(3200), h.Balance(t, apptest.RewardToken, apptest.Treasury), "20% burned")

	opened, err := h.App.OpenBundle(ctx, "alice", md.Mint)
	require.NoError(t, err)
	assert.Equal(t, 0, opened.BundleID)
	assert.Equal(t, []int{1, 2}, opened.Fragments)
	assert.Equal(t, int64(1), h.Balance(t, domain.FragmentToken(1), "alice"))
	assert.Equal(t, int64(1), h.Balance(t, domain.FragmentToken(2), "alice"))
	assert.Zero(t, h.Balance(t, md.Mint, "alice"))

	_, err = h.App.OpenBundle(ctx, "alice", md.Mint)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenBundleRollsRewardCount(t *testing.T) {
	h := apptest.New(t, func(s *apptest.Setup) { s.Entropy = []uint64{9999} })
	ctx := context.Background()
	h.FundRewards(t, "alice", 8000)

	md, err := h.App.BuyBundle(ctx, "alice", 1)
	require.NoError(t, err)
	opened, err := h.App.OpenBundle(ctx, "alice", md.Mint)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 9, 9, 9, 9}, opened.Fragments)
	assert.Equal(t, int64(5), h.Balance(t, domain.FragmentToken(9), "alice"))
}

func TestOpenBundleDrawsOutsideTransaction(t *testing.T) {
	h := apptest.New(t, func(s *apptest.Setup) { s.Entropy = []uint64{0} })
	ctx := context.Background()
	h.FundRewards(t, "alice", 4000)
	h.FundRewards(t, "bob", 4000)
	md, err := h.App.BuyBundle(ctx, "alice", 0)
	require.NoError(t, err)

	h.Gate.Arm()
	done := make(chan error, 1)
	go func() {
		_, err := h.App.OpenBundle(ctx, "alice", md.Mint)
		done <- err
	}()
	h.Gate.Reading()

	_, err = h.App.BuyBundle(ctx, "bob", 0)
	require.NoError(t, err)

	h.Gate.Release()
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), h.Balance(t, domain.FragmentToken(1), "alice"))
	assert.Zero(t, h.Balance(t, md.Mint, "alice"))
}

func TestOpenBundleRejectsOthers(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.FundRewards(t, "alice", 1_500_000+4000)

	nft, err := h.App.BuyNft(ctx, "alice")
	require.NoError(t, err)
	_, err = h.App.OpenBundle(ctx, "alice", nft.Mint)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	bundle, err := h.App.BuyBundle(ctx, "alice", 0)
	require.NoError(t, err)
	_, err = h.App.OpenBundle(ctx, "bob", bundle.Mint)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuyNftCharges(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.FundRewards(t, "alice", 1_600_000)

	md, err := h.App.BuyNft(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.NftName, md.Name)
	assert.Equal(t, int64(100_000), h.Balance(t, apptest.RewardToken, "alice"))
	assert.Equal(t, int64(1_200_000), h.Balance(t, apptest.RewardToken, apptest.Treasury))
}

func TestPurchaseFailuresMintNothing(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.FundRewards(t, "alice", 3999)

	_, err := h.App.BuyBundle(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(3999), h.Balance(t, apptest.RewardToken, "alice"))

	_, err = h.App.BuyBundle(ctx, "alice", 6)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = h.App.BuyNft(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestTreasuryBuysFree(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	md, err := h.App.BuyBundle(ctx, apptest.Treasury, 5)
	require.NoError(t, err)
	assert.Equal(t, "BUNDLE 6", md.Name)
	assert.Equal(t, int64(1), h.Balance(t, md.Mint, apptest.Treasury))
}
