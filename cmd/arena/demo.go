package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/arenabet/config"
	"github.com/alejandrodnm/arenabet/internal/adapters/entropy"
	"github.com/alejandrodnm/arenabet/internal/adapters/notify"
	"github.com/alejandrodnm/arenabet/internal/adapters/oracle"
	"github.com/alejandrodnm/arenabet/internal/adapters/storage"
	"github.com/alejandrodnm/arenabet/internal/application"
	"github.com/alejandrodnm/arenabet/internal/application/market"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/scheduler"
	"github.com/shopspring/decimal"
)

// demoClock avanza a mano para poder cerrar ventanas sin esperar.
type demoClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *demoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *demoClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type demoBet struct {
	user     string
	side     domain.Side
	amount   int64
	referrer string
}

// runDemo juega una arena completa y cierra su hora sobre un store en memoria.
func runDemo(ctx context.Context, cfg *config.Config, out *notify.Console) error {
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	defer store.Close()

	clock := &demoClock{t: time.Now().UTC().Truncate(time.Hour).Add(5 * time.Minute)}
	prices := oracle.NewFixed(clock.Now)
	start := decimal.NewFromInt(100)
	if v, ok := cfg.Oracle.Prices[cfg.Ledger.ArenaSymbol]; ok {
		if start, err = decimal.NewFromString(v); err != nil {
			return fmt.Errorf("demo: start price: %w", err)
		}
	}
	prices.Set(cfg.Ledger.ArenaSymbol, start)

	params, err := cfg.Economy()
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	app, err := application.New(store, prices, entropy.Crypto{}, params, application.Options{Now: clock.Now})
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	admin := cfg.Ledger.Admin
	gc, err := app.Initialize(ctx, admin, cfg.GlobalConfig())
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	bets := []demoBet{
		{"alice", domain.SideUp, 2_500_000, "rita"},
		{"bob", domain.SideUp, 2_000_000, ""},
		{"carol", domain.SideDown, 1_500_000, "rita"},
		{"dave", domain.SideDown, 500_000, ""},
	}
	if err := app.Deposit(ctx, admin, gc.BetToken, gc.Treasury, 1_000_000); err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	const arenaID = 1
	if _, err := app.OpenArena(ctx, admin, arenaID); err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	if _, err := app.StartArena(ctx, admin, arenaID); err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	for _, b := range bets {
		if err := app.Deposit(ctx, admin, gc.BetToken, b.user, b.amount); err != nil {
			return fmt.Errorf("demo: %w", err)
		}
		_, err := app.PlaceBet(ctx, market.BetRequest{
			ArenaID:    arenaID,
			UserID:     b.user,
			Side:       b.side,
			Amount:     b.amount,
			Referrer:   b.referrer,
			Commitment: domain.ReferralCommitment(b.user, b.referrer),
		})
		if err != nil {
			return fmt.Errorf("demo: bet %s: %w", b.user, err)
		}
	}

	clock.Advance(10 * time.Minute)
	prices.Set(gc.ArenaSymbol, start.Mul(decimal.RequireFromString("1.01")))
	a, err := app.EndArena(ctx, admin, arenaID)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	_ = out.ArenaSettled(ctx, a)

	for _, b := range bets {
		paid, err := app.ClaimReward(ctx, arenaID, b.user)
		if err != nil {
			slog.Info("demo: no payout", "user", b.user, "reason", domain.ErrorKind(err))
			continue
		}
		fmt.Printf("  %-6s %-4s stake=%d paid=%d\n", b.user, b.side, b.amount, paid)
	}
	if paid, err := app.ClaimReferralReward(ctx, "rita"); err == nil {
		fmt.Printf("  rita   referral=%d\n", paid)
	}

	arenas, err := app.Market.Arenas(ctx)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	out.PrintArenas(arenas)
	if err := app.CloseArenaState(ctx, admin, arenaID); err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	clock.Advance(time.Hour)
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Admin = admin
	schedCfg.Once = true
	if err := scheduler.New(schedCfg, app.Leaderboard, out).Run(ctx); err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	hour := domain.BucketID(domain.WindowHour, clock.Now().Add(-time.Hour))
	for _, b := range bets {
		claim, err := app.ClaimHourRankReward(ctx, hour, b.user)
		if err != nil {
			continue
		}
		fmt.Printf("  %-6s rank=%d reward=%d %s\n", b.user, claim.Rank, claim.Reward, gc.RewardToken)
		if claim.BonusBundle == nil {
			continue
		}
		opened, err := app.OpenBundle(ctx, b.user, claim.BonusBundle.Mint)
		if err != nil {
			return fmt.Errorf("demo: %w", err)
		}
		fmt.Printf("  %-6s opened %s: fragments %v\n", b.user, claim.BonusBundle.Name, opened.Fragments)
	}

	treasury, err := app.Balance(ctx, gc.BetToken, gc.Treasury)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	slog.Info("demo complete", "treasury", treasury)
	return nil
}
