package leaderboard_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/arenabet/internal/application/apptest"
	"github.com/alejandrodnm/arenabet/internal/application/engine"
	"github.com/alejandrodnm/arenabet/internal/application/leaderboard"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hour = domain.BucketID(domain.WindowHour, apptest.Start)

// stake opens arena id and places one Up bet per user.
func stake(t *testing.T, h *apptest.Harness, id uint64, bets map[string]int64) {
	t.Helper()
	h.OpenArena(t, id, false)
	for user, amount := range bets {
		h.Bet(t, id, user, domain.SideUp, amount)
	}
}

// eleven places stakes 10, 20 ... 110 for users u01 ... u11.
func eleven(t *testing.T, h *apptest.Harness) {
	t.Helper()
	bets := make(map[string]int64)
	for i := 1; i <= 11; i++ {
		bets[fmt.Sprintf("u%02d", i)] = int64(i * 10)
	}
	stake(t, h, 1, bets)
}

func TestStakesAccrueAcrossBets(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"alice": 100})
	stake(t, h, 2, map[string]int64{"alice": 200, "bob": 50})
	stake(t, h, 3, map[string]int64{"alice": 300})

	for _, kind := range domain.AccrualKinds {
		bucket := domain.BucketID(kind, apptest.Start)
		standings, err := h.App.Leaderboard.Standings(ctx, kind, bucket, 10)
		require.NoError(t, err)
		require.Len(t, standings, 2, kind)
		assert.Equal(t, "alice", standings[0].UserID)
		assert.Equal(t, int64(600), standings[0].Stake)
		assert.Equal(t, int64(50), standings[1].Stake)
	}
}

func TestEndHourComputesTiers(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 600, "b": 500, "c": 400, "d": 100})

	_, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition, "hour still running")

	h.Clock.Advance(time.Hour)
	_, err = h.App.EndHour(ctx, "mallory", hour, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	r, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{600, 500, 400, 100, 100}, r.Thresholds)
	assert.Equal(t, []int64{428, 749, 535, 107, 42}, r.Rewards)
	assert.Equal(t, 4, r.Participants)

	_, err = h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	rank, err := h.App.Leaderboard.Rank(ctx, domain.WindowHour, hour, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	claim, err := h.App.ClaimHourRankReward(ctx, hour, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, claim.Rank)
	assert.Equal(t, int64(428), claim.Reward)
	require.NotNil(t, claim.BonusBundle)
	assert.Equal(t, "BUNDLE 1", claim.BonusBundle.Name)
	assert.Equal(t, int64(1), h.Balance(t, claim.BonusBundle.Mint, "a"))
	assert.Equal(t, int64(428), h.Balance(t, apptest.RewardToken, "a"))

	claim, err = h.App.ClaimHourRankReward(ctx, hour, "d")
	require.NoError(t, err)
	assert.Equal(t, 3, claim.Rank)
	assert.Equal(t, int64(107), claim.Reward)
	assert.Nil(t, claim.BonusBundle)

	_, err = h.App.ClaimHourRankReward(ctx, hour, "d")
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
	_, err = h.App.ClaimHourRankReward(ctx, hour, "zed")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClaimBeforeCloseFails(t *testing.T) {
	h := apptest.New(t)
	stake(t, h, 1, map[string]int64{"a": 10})

	_, err := h.App.ClaimHourRankReward(context.Background(), hour, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOnlyTopTenAreRanked(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	eleven(t, h)
	h.Clock.Advance(time.Hour)

	r, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{110, 100, 90, 70, 20}, r.Thresholds)
	assert.Equal(t, 11, r.Participants)

	_, err = h.App.ClaimHourRankReward(ctx, hour, "u01")
	assert.ErrorIs(t, err, domain.ErrUnranked)

	claim, err := h.App.ClaimHourRankReward(ctx, hour, "u02")
	require.NoError(t, err)
	assert.Equal(t, 4, claim.Rank)
	assert.Equal(t, int64(42), claim.Reward)
}

func TestSmallPagesGiveSameResult(t *testing.T) {
	h := apptest.New(t, func(s *apptest.Setup) { s.PageSize = 2 })
	ctx := context.Background()
	eleven(t, h)
	h.Clock.Advance(time.Hour)

	r, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{110, 100, 90, 70, 20}, r.Thresholds)
	assert.Equal(t, 11, r.Participants)
}

func TestSuppliedTablesMustMatch(t *testing.T) {
	h := apptest.New(t, func(s *apptest.Setup) { s.PageSize = 3 })
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 600, "b": 500, "c": 400, "d": 100})
	h.Clock.Advance(time.Hour)
	rewards := []int64{428, 749, 535, 107, 42}

	_, err := h.App.EndHour(ctx, apptest.Admin, hour, []int64{600}, rewards)
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)

	_, err = h.App.EndHour(ctx, apptest.Admin, hour, []int64{600, 500, 400, 100, 1}, rewards)
	assert.ErrorIs(t, err, domain.ErrConfigMismatch)
	_, err = h.App.Leaderboard.Result(ctx, domain.WindowHour, hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	r, err := h.App.EndHour(ctx, apptest.Admin, hour, []int64{600, 500, 400, 100, 100}, rewards)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Participants)
}

func TestEmptyWindowHasEmptyResult(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	r, err := h.App.EndHour(ctx, apptest.Admin, hour-1, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, r.Thresholds)
	assert.Empty(t, r.Rewards)
	assert.Zero(t, r.Participants)

	require.NoError(t, h.App.CloseHourResult(ctx, apptest.Admin, hour-1))
}

func TestLateBetRollsIntoNextBucket(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 100})
	h.Clock.Advance(time.Hour)
	_, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)

	h.Clock.Set(apptest.Start)
	stake(t, h, 2, map[string]int64{"late": 40})

	closed, err := h.App.Leaderboard.Standings(ctx, domain.WindowHour, hour, 10)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "a", closed[0].UserID)

	next, err := h.App.Leaderboard.Standings(ctx, domain.WindowHour, hour+1, 10)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "late", next[0].UserID)
	assert.Equal(t, int64(40), next[0].Stake)
}

func TestAccrualLocksNextBucket(t *testing.T) {
	keys := leaderboard.AccrualKeys("alice", apptest.Start)
	for _, k := range domain.AccrualKinds {
		b := domain.BucketID(k, apptest.Start)
		assert.Contains(t, keys, engine.AccumulatorKey(k, b, "alice"))
		assert.Contains(t, keys, engine.WindowKey(k, b+1))
		assert.Contains(t, keys, engine.AccumulatorKey(k, b+1, "alice"))
	}
}

func TestBetRejectedWhenNextBucketClosedToo(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	h.OpenArena(t, 1, false)
	h.Clock.Advance(2 * time.Hour)
	_, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)
	_, err = h.App.EndHour(ctx, apptest.Admin, hour+1, nil, nil)
	require.NoError(t, err)

	h.Clock.Set(apptest.Start)
	h.Fund(t, "late", 40)
	_, err = h.App.PlaceBet(ctx, apptest.BetRequest(1, "late", domain.SideUp, 40, ""))
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, int64(40), h.Balance(t, apptest.BetToken, "late"), "nothing escrowed")
}

func TestCloseWindowResultWaitsForClaims(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 20, "b": 10})
	h.Clock.Advance(time.Hour)
	_, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)

	err = h.App.CloseHourResult(ctx, apptest.Admin, hour)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	for _, u := range []string{"a", "b"} {
		_, err := h.App.ClaimHourRankReward(ctx, hour, u)
		require.NoError(t, err)
	}
	require.NoError(t, h.App.CloseHourResult(ctx, apptest.Admin, hour))

	_, err = h.App.Leaderboard.Result(ctx, domain.WindowHour, hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	standings, err := h.App.Leaderboard.Standings(ctx, domain.WindowHour, hour, 10)
	require.NoError(t, err)
	assert.Empty(t, standings)
}

func TestCloseWindowResultAfterClaimPeriod(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 20})
	h.Clock.Advance(time.Hour)
	_, err := h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)

	h.Clock.Advance(time.Hour)
	require.NoError(t, h.App.CloseHourResult(ctx, apptest.Admin, hour))

	err = h.App.CloseHourResult(ctx, apptest.Admin, hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingBuckets(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 20})

	pending, err := h.App.Leaderboard.PendingBuckets(ctx, domain.WindowHour)
	require.NoError(t, err)
	assert.Empty(t, pending, "current hour is still running")

	h.Clock.Advance(time.Hour)
	pending, err = h.App.Leaderboard.PendingBuckets(ctx, domain.WindowHour)
	require.NoError(t, err)
	assert.Equal(t, []uint64{hour}, pending)

	_, err = h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)
	pending, err = h.App.Leaderboard.PendingBuckets(ctx, domain.WindowHour)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDayAndWeekWindows(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 20})
	day := domain.BucketID(domain.WindowDay, apptest.Start)
	week := domain.BucketID(domain.WindowWeek, apptest.Start)

	h.Clock.Set(domain.BucketEnd(domain.WindowDay, day))
	r, err := h.App.EndDay(ctx, apptest.Admin, day, nil, nil)
	require.NoError(t, err)
	assert.Len(t, r.Thresholds, 7)
	claim, err := h.App.ClaimDayRankReward(ctx, day, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10273), claim.Reward)

	_, err = h.App.EndWeek(ctx, apptest.Admin, week, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	h.Clock.Set(domain.BucketEnd(domain.WindowWeek, week))
	r, err = h.App.EndWeek(ctx, apptest.Admin, week, nil, nil)
	require.NoError(t, err)
	assert.Len(t, r.Thresholds, 9)
	claim, err = h.App.ClaimWeekRankReward(ctx, week, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(32363), claim.Reward)
	require.NoError(t, h.App.CloseWeekResult(ctx, apptest.Admin, week))
	require.NoError(t, h.App.CloseDayResult(ctx, apptest.Admin, day))
}

func TestEightBoxHasNoLeaderboard(t *testing.T) {
	h := apptest.New(t)
	_, err := h.App.Leaderboard.EndWindow(context.Background(), apptest.Admin, domain.WindowEightBox, 1, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestCloseEightBoxState(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()
	stake(t, h, 1, map[string]int64{"a": 20})
	box := domain.BucketID(domain.WindowEightBox, apptest.Start)

	err := h.App.CloseEightBoxState(ctx, apptest.Admin, "a", box)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	h.Clock.Set(domain.BucketEnd(domain.WindowEightBox, box))
	err = h.App.CloseEightBoxState(ctx, "mallory", "a", box)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	require.NoError(t, h.App.CloseEightBoxState(ctx, apptest.Admin, "a", box))
	err = h.App.CloseEightBoxState(ctx, apptest.Admin, "a", box)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
