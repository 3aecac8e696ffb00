package escrow_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/arenabet/internal/adapters/storage"
	"github.com/alejandrodnm/arenabet/internal/application/escrow"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cfg = domain.GlobalConfig{
	Admin: "admin", Treasury: "treasury", Escrow: "escrow", ReferralVault: "refvault",
	BetToken: "USDC", RewardToken: "FEEL",
}

func TestLedger_ConservesPool(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	err = db.WithTx(ctx, func(tx ports.Tx) error {
		require.NoError(t, tx.Ledger().Mint(ctx, "USDC", "alice", 1000))
		require.NoError(t, tx.Ledger().Mint(ctx, "USDC", "bob", 1000))

		books := escrow.New(tx, cfg)
		a := &domain.Arena{ID: 1, State: domain.ArenaActive}
		require.NoError(t, books.Deposit(ctx, a, "alice", domain.SideUp, 300))
		require.NoError(t, books.Deposit(ctx, a, "bob", domain.SideDown, 700))
		assert.Equal(t, int64(1000), a.TotalPool())
		assert.Equal(t, 1, a.UpCount)

		a.State, a.Outcome = domain.ArenaResolved, domain.OutcomeUp
		require.NoError(t, books.SweepFee(ctx, a, 70))
		require.NoError(t, books.Payout(ctx, a, "alice", 930))

		// nothing left to pay
		err := books.Payout(ctx, a, "alice", 1)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		assert.Zero(t, escrow.Residual(*a))
		bal, err := tx.Ledger().Balance(ctx, "USDC", "escrow")
		require.NoError(t, err)
		assert.Zero(t, bal)
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_DepositNeedsFunds(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	err = db.WithTx(ctx, func(tx ports.Tx) error {
		a := &domain.Arena{ID: 1, State: domain.ArenaOpen}
		err := escrow.New(tx, cfg).Deposit(ctx, a, "broke", domain.SideUp, 1)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Zero(t, a.TotalPool())
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_RefundShrinksPool(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	err = db.WithTx(ctx, func(tx ports.Tx) error {
		require.NoError(t, tx.Ledger().Mint(ctx, "USDC", "alice", 50))
		books := escrow.New(tx, cfg)
		a := &domain.Arena{ID: 2, State: domain.ArenaActive}
		require.NoError(t, books.Deposit(ctx, a, "alice", domain.SideDown, 50))

		a.State = domain.ArenaCancelled
		require.NoError(t, books.Refund(ctx, a, domain.Bet{UserID: "alice", Side: domain.SideDown, Amount: 50}))
		assert.Zero(t, a.TotalPool())

		bal, err := tx.Ledger().Balance(ctx, "USDC", "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(50), bal)
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_FundReferralCapsAtTreasury(t *testing.T) {
	db, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	err = db.WithTx(ctx, func(tx ports.Tx) error {
		require.NoError(t, tx.Ledger().Mint(ctx, "USDC", "treasury", 150))
		books := escrow.New(tx, cfg)
		a := &domain.Arena{ID: 3, State: domain.ArenaActive}

		funded, err := books.FundReferral(ctx, a, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), funded)

		// solo quedan 50
		funded, err = books.FundReferral(ctx, a, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(50), funded)

		funded, err = books.FundReferral(ctx, a, 100)
		require.NoError(t, err)
		assert.Zero(t, funded)

		assert.Equal(t, int64(150), a.ReferralAccrued)
		vault, err := tx.Ledger().Balance(ctx, "USDC", "refvault")
		require.NoError(t, err)
		assert.Equal(t, int64(150), vault)
		return nil
	})
	require.NoError(t, err)
}
