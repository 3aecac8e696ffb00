// Package application wires the arena services over one store, one lock
// table and one clock, and exposes the administrative and user surfaces.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/arenabet/internal/application/crafting"
	"github.com/alejandrodnm/arenabet/internal/application/engine"
	"github.com/alejandrodnm/arenabet/internal/application/leaderboard"
	"github.com/alejandrodnm/arenabet/internal/application/market"
	"github.com/alejandrodnm/arenabet/internal/application/rewards"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/lockset"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Options tunes the runtime. Zero values pick defaults.
type Options struct {
	Now       func() time.Time
	NewMintID func() string
	LockWait  time.Duration
	PageSize  int
}

// App is the full arena platform.
type App struct {
	Market      *market.Service
	Leaderboard *leaderboard.Engine
	Rewards     *rewards.Distributor
	Crafting    *crafting.Economy

	rt *engine.Runtime
}

// New validates the economy tables and builds every service.
func New(store ports.Store, oracle ports.PriceOracle, entropy ports.EntropySource, params domain.Economy, opts Options) (*App, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("application.New: %w", err)
	}
	rt := engine.NewRuntime(store, lockset.New(opts.LockWait), opts.Now)
	minter := crafting.NewMinter(params, opts.NewMintID, rt.Now)

	return &App{
		Market:      market.New(rt, oracle),
		Leaderboard: leaderboard.New(rt, params, minter, opts.PageSize),
		Rewards:     rewards.New(rt, params, minter),
		Crafting:    crafting.New(rt, params, minter, entropy),
		rt:          rt,
	}, nil
}

// Now is the platform clock.
func (a *App) Now() time.Time { return a.rt.Now() }

// Initialize stores the global config once, with caller as administrator.
func (a *App) Initialize(ctx context.Context, caller string, cfg domain.GlobalConfig) (domain.GlobalConfig, error) {
	cfg.Admin = caller
	cfg.InitializedAt = a.rt.Now()
	if err := cfg.Validate(); err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("application.Initialize: %w", err)
	}
	err := a.rt.Atomic(ctx, []string{engine.ConfigKey}, func(tx ports.Tx) error {
		return tx.CreateConfig(ctx, cfg)
	})
	if err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("application.Initialize: %w", err)
	}
	slog.Info("platform initialized", "admin", cfg.Admin, "symbol", cfg.ArenaSymbol, "bet_token", cfg.BetToken)
	return cfg, nil
}

// UpdateConfig replaces the global config. Admin only; an empty Admin keeps
// the current one.
func (a *App) UpdateConfig(ctx context.Context, caller string, next domain.GlobalConfig) (domain.GlobalConfig, error) {
	var out domain.GlobalConfig
	err := a.rt.Atomic(ctx, []string{engine.ConfigKey}, func(tx ports.Tx) error {
		cur, err := engine.RequireAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		next.InitializedAt = cur.InitializedAt
		if next.Admin == "" {
			next.Admin = cur.Admin
		}
		if err := next.Validate(); err != nil {
			return err
		}
		out = next
		return tx.SaveConfig(ctx, next)
	})
	if err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("application.UpdateConfig: %w", err)
	}
	slog.Info("platform config updated", "admin", out.Admin)
	return out, nil
}

// Config returns the stored global config.
func (a *App) Config(ctx context.Context) (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig
	err := a.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		cfg, err = engine.LoadConfig(ctx, tx)
		return err
	})
	return cfg, err
}

// Balance reads one ledger balance.
func (a *App) Balance(ctx context.Context, token, account string) (int64, error) {
	var bal int64
	err := a.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		bal, err = tx.Ledger().Balance(ctx, token, account)
		return err
	})
	return bal, err
}

// Deposit mints betting or reward tokens to an account. Admin only; it
// stands in for funds arriving from outside the platform.
func (a *App) Deposit(ctx context.Context, caller, token, account string, amount int64) error {
	return a.rt.Atomic(ctx, []string{engine.AccountKey(account)}, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("application.Deposit: %w", err)
		}
		return tx.Ledger().Mint(ctx, token, account, amount)
	})
}

// Administrative surface.

func (a *App) OpenArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	return a.Market.OpenArena(ctx, caller, id)
}

func (a *App) StartArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	return a.Market.StartArena(ctx, caller, id)
}

func (a *App) EndArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	return a.Market.EndArena(ctx, caller, id)
}

func (a *App) CancelArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	return a.Market.CancelArena(ctx, caller, id)
}

func (a *App) CloseArenaState(ctx context.Context, caller string, id uint64) error {
	return a.Market.CloseArenaState(ctx, caller, id)
}

func (a *App) EndHour(ctx context.Context, caller string, bucket uint64, thresholds, rewards []int64) (domain.WindowResult, error) {
	return a.Leaderboard.EndWindow(ctx, caller, domain.WindowHour, bucket, thresholds, rewards)
}

func (a *App) EndDay(ctx context.Context, caller string, bucket uint64, thresholds, rewards []int64) (domain.WindowResult, error) {
	return a.Leaderboard.EndWindow(ctx, caller, domain.WindowDay, bucket, thresholds, rewards)
}

func (a *App) EndWeek(ctx context.Context, caller string, bucket uint64, thresholds, rewards []int64) (domain.WindowResult, error) {
	return a.Leaderboard.EndWindow(ctx, caller, domain.WindowWeek, bucket, thresholds, rewards)
}

func (a *App) CloseHourResult(ctx context.Context, caller string, bucket uint64) error {
	return a.Leaderboard.CloseWindowResult(ctx, caller, domain.WindowHour, bucket)
}

func (a *App) CloseDayResult(ctx context.Context, caller string, bucket uint64) error {
	return a.Leaderboard.CloseWindowResult(ctx, caller, domain.WindowDay, bucket)
}

func (a *App) CloseWeekResult(ctx context.Context, caller string, bucket uint64) error {
	return a.Leaderboard.CloseWindowResult(ctx, caller, domain.WindowWeek, bucket)
}

func (a *App) CloseEightBoxState(ctx context.Context, caller, user string, box uint64) error {
	return a.Leaderboard.CloseEightBoxState(ctx, caller, user, box)
}

func (a *App) MintFragment(ctx context.Context, caller, user string, kind int) error {
	return a.Crafting.MintFragment(ctx, caller, user, kind)
}

// User surface.

func (a *App) PlaceBet(ctx context.Context, req market.BetRequest) (domain.Bet, error) {
	return a.Market.PlaceBet(ctx, req)
}

func (a *App) ClaimReward(ctx context.Context, arenaID uint64, user string) (int64, error) {
	return a.Market.ClaimReward(ctx, arenaID, user)
}

func (a *App) ReturnBet(ctx context.Context, arenaID uint64, user string) (int64, error) {
	return a.Market.ReturnBet(ctx, arenaID, user)
}

func (a *App) ClaimReferralReward(ctx context.Context, user string) (int64, error) {
	return a.Rewards.ClaimReferralReward(ctx, user)
}

func (a *App) ClaimHourRankReward(ctx context.Context, bucket uint64, user string) (domain.WindowClaim, error) {
	return a.Leaderboard.ClaimWindowReward(ctx, domain.WindowHour, bucket, user)
}

func (a *App) ClaimDayRankReward(ctx context.Context, bucket uint64, user string) (domain.WindowClaim, error) {
	return a.Leaderboard.ClaimWindowReward(ctx, domain.WindowDay, bucket, user)
}

func (a *App) ClaimWeekRankReward(ctx context.Context, bucket uint64, user string) (domain.WindowClaim, error) {
	return a.Leaderboard.ClaimWindowReward(ctx, domain.WindowWeek, bucket, user)
}

func (a *App) ClaimEightBoxReward(ctx context.Context, box uint64, user string, prizeID int) (domain.EightBoxClaim, error) {
	return a.Rewards.ClaimEightBoxReward(ctx, box, user, prizeID)
}

func (a *App) BurnFragments(ctx context.Context, user string) (domain.NftBuild, error) {
	return a.Crafting.BurnFragments(ctx, user)
}

func (a *App) BuildNft(ctx context.Context, user string) (domain.Metadata, error) {
	return a.Crafting.BuildNft(ctx, user)
}

func (a *App) BuyBundle(ctx context.Context, user string, bundleID int) (domain.Metadata, error) {
	return a.Crafting.BuyBundle(ctx, user, bundleID)
}

func (a *App) OpenBundle(ctx context.Context, user, mint string) (domain.BundleOpening, error) {
	return a.Crafting.OpenBundle(ctx, user, mint)
}

func (a *App) BuyNft(ctx context.Context, user string) (domain.Metadata, error) {
	return a.Crafting.BuyNft(ctx, user)
}
