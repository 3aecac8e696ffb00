// Package escrow moves betting funds between users, the escrow account and
// the platform vaults, keeping each arena's books balanced:
// payouts plus fee never exceed what the arena's pools took in.
package escrow

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Ledger applies arena money movements on one transaction.
type Ledger struct {
	tx  ports.Tx
	cfg domain.GlobalConfig
}

// New binds the escrow books to tx.
func New(tx ports.Tx, cfg domain.GlobalConfig) *Ledger {
	return &Ledger{tx: tx, cfg: cfg}
}

// Deposit pulls a stake from the user into escrow and grows the side pool.
func (l *Ledger) Deposit(ctx context.Context, a *domain.Arena, user string, side domain.Side, amount int64) error {
	if err := l.tx.Ledger().Transfer(ctx, l.cfg.BetToken, user, l.cfg.Escrow, amount); err != nil {
		return fmt.Errorf("escrow.Deposit arena %d: %w", a.ID, err)
	}
	a.AddStake(side, amount)
	return nil
}

// Refund returns a stake at face value and shrinks its side pool.
func (l *Ledger) Refund(ctx context.Context, a *domain.Arena, bet domain.Bet) error {
	if bet.Amount > a.Pool(bet.Side) {
		return fmt.Errorf("escrow.Refund arena %d: stake %d exceeds pool: %w", a.ID, bet.Amount, domain.ErrInsufficientFunds)
	}
	if err := l.tx.Ledger().Transfer(ctx, l.cfg.BetToken, l.cfg.Escrow, bet.UserID, bet.Amount); err != nil {
		return fmt.Errorf("escrow.Refund arena %d: %w", a.ID, err)
	}
	a.RemoveStake(bet.Side, bet.Amount)
	return nil
}

// Payout sends a winner's payout out of escrow.
func (l *Ledger) Payout(ctx context.Context, a *domain.Arena, user string, amount int64) error {
	if a.PaidOut+amount+a.Fee > a.TotalPool() {
		return fmt.Errorf("escrow.Payout arena %d: %d paid + %d would exceed pool %d: %w",
			a.ID, a.PaidOut, amount, a.TotalPool(), domain.ErrInsufficientFunds)
	}
	if err := l.tx.Ledger().Transfer(ctx, l.cfg.BetToken, l.cfg.Escrow, user, amount); err != nil {
		return fmt.Errorf("escrow.Payout arena %d: %w", a.ID, err)
	}
	a.PaidOut += amount
	return nil
}

// SweepFee moves the settlement fee from escrow to treasury.
func (l *Ledger) SweepFee(ctx context.Context, a *domain.Arena, fee int64) error {
	if fee > a.TotalPool() {
		return fmt.Errorf("escrow.SweepFee arena %d: fee %d over pool: %w", a.ID, fee, domain.ErrInsufficientFunds)
	}
	if err := l.tx.Ledger().Transfer(ctx, l.cfg.BetToken, l.cfg.Escrow, l.cfg.Treasury, fee); err != nil {
		return fmt.Errorf("escrow.SweepFee arena %d: %w", a.ID, err)
	}
	a.Fee = fee
	return nil
}

// FundReferral moves a referral share from treasury to the referral vault
// and returns the amount moved. A short treasury funds only what it holds;
// escrowed stakes are never used.
func (l *Ledger) FundReferral(ctx context.Context, a *domain.Arena, share int64) (int64, error) {
	if share <= 0 {
		return 0, nil
	}
	held, err := l.tx.Ledger().Balance(ctx, l.cfg.BetToken, l.cfg.Treasury)
	if err != nil {
		return 0, fmt.Errorf("escrow.FundReferral arena %d: %w", a.ID, err)
	}
	funded := min(share, held)
	if funded <= 0 {
		return 0, nil
	}
	if err := l.tx.Ledger().Transfer(ctx, l.cfg.BetToken, l.cfg.Treasury, l.cfg.ReferralVault, funded); err != nil {
		return 0, fmt.Errorf("escrow.FundReferral arena %d: %w", a.ID, err)
	}
	a.ReferralAccrued += funded
	return funded, nil
}

// Residual is what stays in escrow for an arena once every claim is settled:
// the rounding dust left by pro-rata payouts.
func Residual(a domain.Arena) int64 {
	if a.Refunding() {
		return a.TotalPool()
	}
	return a.TotalPool() - a.Fee - a.PaidOut
}

// SweepResidual moves leftover dust to treasury before the arena is dropped.
func (l *Ledger) SweepResidual(ctx context.Context, a domain.Arena) (int64, error) {
	dust := Residual(a)
	if dust <= 0 {
		return 0, nil
	}
	if err := l.tx.Ledger().Transfer(ctx, l.cfg.BetToken, l.cfg.Escrow, l.cfg.Treasury, dust); err != nil {
		return 0, fmt.Errorf("escrow.SweepResidual arena %d: %w", a.ID, err)
	}
	return dust, nil
}
