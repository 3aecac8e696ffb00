package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/arenabet/internal/adapters/entropy"
	"github.com/alejandrodnm/arenabet/internal/adapters/oracle"
	"github.com/alejandrodnm/arenabet/internal/adapters/storage"
	"github.com/alejandrodnm/arenabet/internal/application"
	"github.com/alejandrodnm/arenabet/internal/application/apptest"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bareApp(t *testing.T, params domain.Economy) (*application.App, error) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return application.New(store, oracle.NewFixed(nil), entropy.Crypto{}, params, application.Options{})
}

func TestNewRejectsBrokenEconomy(t *testing.T) {
	params := domain.DefaultEconomy()
	params.Bundles = params.Bundles[:2]

	_, err := bareApp(t, params)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter, "prizes reference bundles 3..5")
}

func TestOperationsNeedInitialize(t *testing.T) {
	app, err := bareApp(t, domain.DefaultEconomy())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = app.OpenArena(ctx, apptest.Admin, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = app.Config(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestInitializeOnce(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	assert.Equal(t, apptest.Admin, h.Config.Admin)
	assert.True(t, apptest.Start.Equal(h.Config.InitializedAt))

	_, err := h.App.Initialize(ctx, "mallory", h.Config)
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	cfg, err := h.App.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, apptest.Admin, cfg.Admin)
}

func TestUpdateConfig(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	next := h.Config
	next.Admin = ""
	next.PlatformFeeBps = 250

	_, err := h.App.UpdateConfig(ctx, "mallory", next)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	cfg, err := h.App.UpdateConfig(ctx, apptest.Admin, next)
	require.NoError(t, err)
	assert.Equal(t, apptest.Admin, cfg.Admin)
	assert.Equal(t, int64(250), cfg.PlatformFeeBps)

	next.Escrow = next.Treasury
	_, err = h.App.UpdateConfig(ctx, apptest.Admin, next)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	stored, err := h.App.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, apptest.Escrow, stored.Escrow)
}

func TestAdminHandover(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	next := h.Config
	next.Admin = "ops"
	_, err := h.App.UpdateConfig(ctx, apptest.Admin, next)
	require.NoError(t, err)

	_, err = h.App.OpenArena(ctx, apptest.Admin, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = h.App.OpenArena(ctx, "ops", 1)
	require.NoError(t, err)
}

func TestDepositIsAdminOnly(t *testing.T) {
	h := apptest.New(t)
	ctx := context.Background()

	err := h.App.Deposit(ctx, "mallory", apptest.BetToken, "mallory", 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	err = h.App.Deposit(ctx, apptest.Admin, apptest.BetToken, "alice", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestSeasonEndToEnd(t *testing.T) {
	h := apptest.New(t, func(s *apptest.Setup) { s.Entropy = []uint64{0} })
	ctx := context.Background()
	hour := domain.BucketID(domain.WindowHour, apptest.Start)

	h.OpenArena(t, 1, true)
	h.Bet(t, 1, "alice", domain.SideUp, 900)
	h.Bet(t, 1, "bob", domain.SideDown, 100)
	h.SetPrice("101.5")
	_, err := h.App.EndArena(ctx, apptest.Admin, 1)
	require.NoError(t, err)
	paid, err := h.App.ClaimReward(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(990), paid)
	require.NoError(t, h.App.CloseArenaState(ctx, apptest.Admin, 1))

	h.Clock.Advance(time.Hour)
	_, err = h.App.EndHour(ctx, apptest.Admin, hour, nil, nil)
	require.NoError(t, err)
	claim, err := h.App.ClaimHourRankReward(ctx, hour, "alice")
	require.NoError(t, err)
	require.NotNil(t, claim.BonusBundle)

	opened, err := h.App.OpenBundle(ctx, "alice", claim.BonusBundle.Mint)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, opened.Fragments)
	assert.Equal(t, int64(2), h.Balance(t, domain.FragmentToken(1), "alice"))

	bob, err := h.App.ClaimHourRankReward(ctx, hour, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(749), bob.Reward)
	require.NoError(t, h.App.CloseHourResult(ctx, apptest.Admin, hour))
}
