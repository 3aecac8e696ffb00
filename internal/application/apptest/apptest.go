// Package apptest builds a fully wired App over in-memory SQLite for tests.
package apptest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/arenabet/internal/adapters/entropy"
	"github.com/alejandrodnm/arenabet/internal/adapters/oracle"
	"github.com/alejandrodnm/arenabet/internal/adapters/storage"
	"github.com/alejandrodnm/arenabet/internal/application"
	"github.com/alejandrodnm/arenabet/internal/application/market"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	Admin         = "admin"
	Treasury      = "treasury"
	Escrow        = "escrow"
	ReferralVault = "referral-vault"
	BetToken      = "USDC"
	RewardToken   = "FEEL"
	Symbol        = "BTC"
)

// Start is the harness clock's initial time: Monday 2026-03-02 10:15 UTC.
var Start = time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)

// Clock is a settable clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Setup tweaks the harness before the App is built.
type Setup struct {
	Economy  domain.Economy
	PageSize int
	Entropy  []uint64
}

// Harness is a wired App plus handles on its fakes.
type Harness struct {
	App     *application.App
	Oracle  *oracle.Fixed
	Entropy *entropy.Sequence
	Gate    *Gate
	Clock   *Clock
	Config  domain.GlobalConfig
}

// Gate parks oracle and entropy reads once armed, until Release.
type Gate struct {
	armed   atomic.Bool
	reading chan struct{}
	release chan struct{}
}

// Arm makes every following read wait on the gate.
func (g *Gate) Arm() { g.armed.Store(true) }

// Reading blocks until a read is parked on the gate.
func (g *Gate) Reading() { <-g.reading }

// Release lets parked and later reads through.
func (g *Gate) Release() { close(g.release) }

func (g *Gate) wait() {
	if !g.armed.Load() {
		return
	}
	g.reading <- struct{}{}
	<-g.release
}

type gatedOracle struct {
	ports.PriceOracle
	gate *Gate
}

func (o gatedOracle) GetPrice(ctx context.Context, symbol string) (domain.Price, error) {
	o.gate.wait()
	return o.PriceOracle.GetPrice(ctx, symbol)
}

type gatedEntropy struct {
	ports.EntropySource
	gate *Gate
}

func (e gatedEntropy) Draw(ctx context.Context, n int) ([]uint64, error) {
	e.gate.wait()
	return e.EntropySource.Draw(ctx, n)
}

// New builds an initialized App with BTC priced at 100.
func New(t testing.TB, opts ...func(*Setup)) *Harness {
	t.Helper()
	setup := Setup{Economy: domain.DefaultEconomy(), Entropy: []uint64{0}}
	for _, o := range opts {
		o(&setup)
	}

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &Clock{t: Start}
	h := &Harness{
		Oracle:  oracle.NewFixed(clock.Now),
		Entropy: entropy.NewSequence(setup.Entropy...),
		Gate:    &Gate{reading: make(chan struct{}), release: make(chan struct{})},
		Clock:   clock,
	}
	h.Oracle.Set(Symbol, decimal.NewFromInt(100))

	var (
		mu   sync.Mutex
		mint int
	)
	prices := gatedOracle{PriceOracle: h.Oracle, gate: h.Gate}
	draws := gatedEntropy{EntropySource: h.Entropy, gate: h.Gate}
	h.App, err = application.New(store, prices, draws, setup.Economy, application.Options{
		Now:      clock.Now,
		LockWait: 5 * time.Second,
		PageSize: setup.PageSize,
		NewMintID: func() string {
			mu.Lock()
			defer mu.Unlock()
			mint++
			return fmt.Sprintf("mint-%d", mint)
		},
	})
	require.NoError(t, err)

	h.Config, err = h.App.Initialize(context.Background(), Admin, domain.GlobalConfig{
		Treasury:       Treasury,
		Escrow:         Escrow,
		ReferralVault:  ReferralVault,
		BetToken:       BetToken,
		RewardToken:    RewardToken,
		ArenaSymbol:    Symbol,
		PlatformFeeBps: 1000,
		ReferralFeeBps: 1000,
	})
	require.NoError(t, err)
	return h
}

// Fund mints betting tokens to account.
func (h *Harness) Fund(t testing.TB, account string, amount int64) {
	t.Helper()
	require.NoError(t, h.App.Deposit(context.Background(), Admin, BetToken, account, amount))
}

// FundRewards mints reward tokens to account.
func (h *Harness) FundRewards(t testing.TB, account string, amount int64) {
	t.Helper()
	require.NoError(t, h.App.Deposit(context.Background(), Admin, RewardToken, account, amount))
}

// Balance reads a ledger balance.
func (h *Harness) Balance(t testing.TB, token, account string) int64 {
	t.Helper()
	bal, err := h.App.Balance(context.Background(), token, account)
	require.NoError(t, err)
	return bal
}

// OpenArena opens arena id and, when start is set, starts it.
func (h *Harness) OpenArena(t testing.TB, id uint64, start bool) {
	t.Helper()
	ctx := context.Background()
	_, err := h.App.OpenArena(ctx, Admin, id)
	require.NoError(t, err)
	if start {
		_, err = h.App.StartArena(ctx, Admin, id)
		require.NoError(t, err)
	}
}

// BetRequest builds a well-formed bet request.
func BetRequest(arenaID uint64, user string, side domain.Side, amount int64, referrer string) market.BetRequest {
	return market.BetRequest{
		ArenaID:    arenaID,
		UserID:     user,
		Side:       side,
		Amount:     amount,
		Referrer:   referrer,
		Commitment: domain.ReferralCommitment(user, referrer),
	}
}

// Bet funds user with amount and places the bet.
func (h *Harness) Bet(t testing.TB, arenaID uint64, user string, side domain.Side, amount int64) domain.Bet {
	t.Helper()
	h.Fund(t, user, amount)
	bet, err := h.App.PlaceBet(context.Background(), BetRequest(arenaID, user, side, amount, ""))
	require.NoError(t, err)
	return bet
}

// SetPrice publishes a new arena price.
func (h *Harness) SetPrice(price string) {
	h.Oracle.Set(Symbol, decimal.RequireFromString(price))
}
