// Package market runs the arena lifecycle: open, start and end against the
// price oracle, bets with referral accrual, winner claims and refunds.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/arenabet/internal/application/engine"
	"github.com/alejandrodnm/arenabet/internal/application/escrow"
	"github.com/alejandrodnm/arenabet/internal/application/leaderboard"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// BetRequest is one user's stake on an arena.
type BetRequest struct {
	ArenaID  uint64
	UserID   string
	Side     domain.Side
	Amount   int64
	Referrer string
	// Commitment must equal domain.ReferralCommitment(UserID, Referrer).
	Commitment [32]byte
}

// Service runs arena operations.
type Service struct {
	rt     *engine.Runtime
	oracle ports.PriceOracle
}

// New builds the market service.
func New(rt *engine.Runtime, oracle ports.PriceOracle) *Service {
	return &Service{rt: rt, oracle: oracle}
}

// OpenArena creates arena id in the Open state. Admin only.
func (s *Service) OpenArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	a := domain.Arena{ID: id, State: domain.ArenaOpen}
	err := s.rt.Atomic(ctx, []string{engine.ArenaKey(id)}, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("market.OpenArena: %w", err)
		}
		a.OpenedAt = s.rt.Now()
		if err := tx.CreateArena(ctx, a); err != nil {
			return fmt.Errorf("market.OpenArena: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Arena{}, err
	}
	slog.Info("market: arena opened", "arena", id)
	return a, nil
}

// StartArena records the start price and moves the arena to Active. Admin only.
func (s *Service) StartArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	var a domain.Arena
	err := s.rt.Locked(ctx, []string{engine.ArenaKey(id)}, func(ctx context.Context) error {
		cfg, err := s.expectState(ctx, caller, id, domain.ArenaOpen)
		if err != nil {
			return fmt.Errorf("market.StartArena: %w", err)
		}
		price, err := s.oracle.GetPrice(ctx, cfg.ArenaSymbol)
		if err != nil {
			return fmt.Errorf("market.StartArena: oracle: %w", err)
		}
		return s.rt.Tx(ctx, func(tx ports.Tx) error {
			if a, err = tx.Arena(ctx, id); err != nil {
				return fmt.Errorf("market.StartArena: %w", err)
			}
			if err := a.Start(price.Value, s.rt.Now()); err != nil {
				return fmt.Errorf("market.StartArena: %w", err)
			}
			return tx.SaveArena(ctx, a)
		})
	})
	if err != nil {
		return domain.Arena{}, err
	}
	slog.Info("market: arena started", "arena", id, "start_price", a.StartPrice.String())
	return a, nil
}

// EndArena records the end price, resolves the outcome and sweeps the
// platform fee to treasury. Admin only.
func (s *Service) EndArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	var a domain.Arena
	err := s.rt.Locked(ctx, []string{engine.ArenaKey(id)}, func(ctx context.Context) error {
		cfg, err := s.expectState(ctx, caller, id, domain.ArenaActive)
		if err != nil {
			return fmt.Errorf("market.EndArena: %w", err)
		}
		price, err := s.oracle.GetPrice(ctx, cfg.ArenaSymbol)
		if err != nil {
			return fmt.Errorf("market.EndArena: oracle: %w", err)
		}

		// la lectura del oráculo queda fuera de los locks de vault
		return s.rt.Atomic(ctx, []string{engine.EscrowKey, engine.TreasuryKey}, func(tx ports.Tx) error {
			if a, err = tx.Arena(ctx, id); err != nil {
				return fmt.Errorf("market.EndArena: %w", err)
			}
			if _, err := a.End(price.Value, s.rt.Now()); err != nil {
				return fmt.Errorf("market.EndArena: %w", err)
			}
			if err := escrow.New(tx, cfg).SweepFee(ctx, &a, domain.SettlementFee(a, cfg.PlatformFeeBps)); err != nil {
				return fmt.Errorf("market.EndArena: %w", err)
			}
			return tx.SaveArena(ctx, a)
		})
	})
	if err != nil {
		return domain.Arena{}, err
	}
	slog.Info("market: arena ended",
		"arena", id,
		"outcome", a.Outcome,
		"end_price", a.EndPrice.String(),
		"up_pool", a.UpPool,
		"down_pool", a.DownPool,
		"fee", a.Fee,
	)
	return a, nil
}

// expectState checks caller is admin and arena id is in state want.
// The caller must hold the arena key.
func (s *Service) expectState(ctx context.Context, caller string, id uint64, want domain.ArenaState) (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig
	err := s.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		if cfg, err = engine.RequireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		a, err := tx.Arena(ctx, id)
		if err != nil {
			return err
		}
		if a.State != want {
			return fmt.Errorf("arena %d is %s: %w", id, a.State, domain.ErrInvalidStateTransition)
		}
		return nil
	})
	return cfg, err
}

// CancelArena aborts an Open or Active arena so every bet can be returned.
// No funds move. Admin only.
func (s *Service) CancelArena(ctx context.Context, caller string, id uint64) (domain.Arena, error) {
	var a domain.Arena
	err := s.rt.Atomic(ctx, []string{engine.ArenaKey(id)}, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("market.CancelArena: %w", err)
		}
		var err error
		if a, err = tx.Arena(ctx, id); err != nil {
			return fmt.Errorf("market.CancelArena: %w", err)
		}
		if err := a.Cancel(s.rt.Now()); err != nil {
			return fmt.Errorf("market.CancelArena: %w", err)
		}
		return tx.SaveArena(ctx, a)
	})
	if err != nil {
		return domain.Arena{}, err
	}
	slog.Info("market: arena cancelled", "arena", id, "pool", a.TotalPool())
	return a, nil
}

// PlaceBet escrows the stake, records the bet, funds and credits the
// referral share and adds the stake to every leaderboard window.
func (s *Service) PlaceBet(ctx context.Context, req BetRequest) (domain.Bet, error) {
	if !req.Side.Valid() {
		return domain.Bet{}, fmt.Errorf("market.PlaceBet: side %q: %w", req.Side, domain.ErrInvalidParameter)
	}
	if req.Amount <= 0 {
		return domain.Bet{}, fmt.Errorf("market.PlaceBet: amount %d: %w", req.Amount, domain.ErrInvalidParameter)
	}
	if req.UserID == "" {
		return domain.Bet{}, fmt.Errorf("market.PlaceBet: empty user: %w", domain.ErrInvalidParameter)
	}
	if req.Commitment != domain.ReferralCommitment(req.UserID, req.Referrer) {
		return domain.Bet{}, fmt.Errorf("market.PlaceBet: referral commitment: %w", domain.ErrInvalidParameter)
	}

	now := s.rt.Now()
	keys := []string{
		engine.ArenaKey(req.ArenaID),
		engine.BetKey(req.ArenaID, req.UserID),
		engine.UserKey(req.UserID),
		engine.AccountKey(req.UserID),
		engine.EscrowKey,
	}
	referred := req.Referrer != "" && req.Referrer != req.UserID
	if referred {
		keys = append(keys, engine.UserKey(req.Referrer), engine.TreasuryKey, engine.ReferralVaultKey)
	}
	keys = append(keys, leaderboard.AccrualKeys(req.UserID, now)...)

	bet := domain.Bet{
		ArenaID:  req.ArenaID,
		UserID:   req.UserID,
		Side:     req.Side,
		Amount:   req.Amount,
		Referrer: req.Referrer,
		PlacedAt: now,
	}
	var share int64
	err := s.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, err := engine.LoadConfig(ctx, tx)
		if err != nil {
			return fmt.Errorf("market.PlaceBet: %w", err)
		}
		a, err := tx.Arena(ctx, req.ArenaID)
		if err != nil {
			return fmt.Errorf("market.PlaceBet: %w", err)
		}
		if !a.AcceptsBets() {
			return fmt.Errorf("market.PlaceBet: arena %d is %s: %w", a.ID, a.State, domain.ErrInvalidStateTransition)
		}
		if err := s.bindReferrer(ctx, tx, req); err != nil {
			return err
		}

		books := escrow.New(tx, cfg)
		if err := books.Deposit(ctx, &a, req.UserID, req.Side, req.Amount); err != nil {
			return fmt.Errorf("market.PlaceBet: %w", err)
		}
		if referred {
			share = domain.MulDiv(req.Amount, cfg.ReferralFeeBps, domain.FeeDenominator)
			if bet.ReferralFee, err = books.FundReferral(ctx, &a, share); err != nil {
				return fmt.Errorf("market.PlaceBet: %w", err)
			}
			if err := creditReferrer(ctx, tx, req.Referrer, bet.ReferralFee); err != nil {
				return fmt.Errorf("market.PlaceBet: %w", err)
			}
		}

		if err := tx.CreateBet(ctx, bet); err != nil {
			return fmt.Errorf("market.PlaceBet: %w", err)
		}
		if err := tx.SaveArena(ctx, a); err != nil {
			return fmt.Errorf("market.PlaceBet: %w", err)
		}
		return leaderboard.Accrue(ctx, tx, req.UserID, now, req.Amount)
	})
	if err != nil {
		return domain.Bet{}, err
	}
	if bet.ReferralFee < share {
		slog.Warn("market: treasury short for referral share",
			"arena", req.ArenaID, "referrer", req.Referrer, "share", share, "funded", bet.ReferralFee)
	}
	slog.Info("market: bet placed", "arena", req.ArenaID, "user", req.UserID, "side", req.Side, "amount", req.Amount)
	return bet, nil
}

// bindReferrer fixes the user's referrer on first bet and rejects a different
// one afterwards.
func (s *Service) bindReferrer(ctx context.Context, tx ports.Tx, req BetRequest) error {
	u, err := tx.User(ctx, req.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		u = domain.User{ID: req.UserID}
	} else if err != nil {
		return fmt.Errorf("market.PlaceBet: %w", err)
	}
	if u.Referrer == req.Referrer {
		if err == nil {
			return nil
		}
		return tx.SaveUser(ctx, u)
	}
	if u.Referrer != "" {
		return fmt.Errorf("market.PlaceBet: %s is bound to referrer %q: %w", req.UserID, u.Referrer, domain.ErrInvalidParameter)
	}
	u.Referrer = req.Referrer
	return tx.SaveUser(ctx, u)
}

func creditReferrer(ctx context.Context, tx ports.Tx, referrer string, fee int64) error {
	if fee == 0 {
		return nil
	}
	u, err := tx.User(ctx, referrer)
	if errors.Is(err, domain.ErrNotFound) {
		u = domain.User{ID: referrer}
	} else if err != nil {
		return err
	}
	u.ReferralBalance += fee
	return tx.SaveUser(ctx, u)
}

// ClaimReward pays a winning bet its stake plus pro-rata share, or its stake
// alone when the arena resolved as a refund.
func (s *Service) ClaimReward(ctx context.Context, arenaID uint64, user string) (int64, error) {
	var paid int64
	keys := []string{engine.ArenaKey(arenaID), engine.BetKey(arenaID, user), engine.AccountKey(user), engine.EscrowKey}
	err := s.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, a, bet, err := loadClaim(ctx, tx, arenaID, user)
		if err != nil {
			return fmt.Errorf("market.ClaimReward: %w", err)
		}
		if a.State != domain.ArenaResolved {
			return fmt.Errorf("market.ClaimReward: arena %d is %s: %w", arenaID, a.State, domain.ErrInvalidStateTransition)
		}

		books := escrow.New(tx, cfg)
		if a.Outcome == domain.OutcomeRefund {
			err = books.Refund(ctx, &a, bet)
			paid = bet.Amount
		} else {
			if paid, err = domain.Payout(a, bet); err != nil {
				return fmt.Errorf("market.ClaimReward: %w", err)
			}
			err = books.Payout(ctx, &a, user, paid)
		}
		if err != nil {
			return fmt.Errorf("market.ClaimReward: %w", err)
		}
		return settle(ctx, tx, a, bet)
	})
	if err != nil {
		return 0, err
	}
	slog.Info("market: reward claimed", "arena", arenaID, "user", user, "paid", paid)
	return paid, nil
}

// ReturnBet refunds a bet of a cancelled arena at face value.
func (s *Service) ReturnBet(ctx context.Context, arenaID uint64, user string) (int64, error) {
	var paid int64
	keys := []string{engine.ArenaKey(arenaID), engine.BetKey(arenaID, user), engine.AccountKey(user), engine.EscrowKey}
	err := s.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, a, bet, err := loadClaim(ctx, tx, arenaID, user)
		if err != nil {
			return fmt.Errorf("market.ReturnBet: %w", err)
		}
		if a.State != domain.ArenaCancelled {
			return fmt.Errorf("market.ReturnBet: arena %d is %s: %w", arenaID, a.State, domain.ErrInvalidStateTransition)
		}
		if err := escrow.New(tx, cfg).Refund(ctx, &a, bet); err != nil {
			return fmt.Errorf("market.ReturnBet: %w", err)
		}
		paid = bet.Amount
		return settle(ctx, tx, a, bet)
	})
	if err != nil {
		return 0, err
	}
	slog.Info("market: bet returned", "arena", arenaID, "user", user, "amount", paid)
	return paid, nil
}

func loadClaim(ctx context.Context, tx ports.Tx, arenaID uint64, user string) (domain.GlobalConfig, domain.Arena, domain.Bet, error) {
	cfg, err := engine.LoadConfig(ctx, tx)
	if err != nil {
		return domain.GlobalConfig{}, domain.Arena{}, domain.Bet{}, err
	}
	a, err := tx.Arena(ctx, arenaID)
	if err != nil {
		return domain.GlobalConfig{}, domain.Arena{}, domain.Bet{}, err
	}
	bet, err := tx.Bet(ctx, arenaID, user)
	if err != nil {
		return domain.GlobalConfig{}, domain.Arena{}, domain.Bet{}, err
	}
	if bet.Claimed {
		return domain.GlobalConfig{}, domain.Arena{}, domain.Bet{},
			fmt.Errorf("arena %d user %s already settled: %w", arenaID, user, domain.ErrDuplicateEntry)
	}
	return cfg, a, bet, nil
}

func settle(ctx context.Context, tx ports.Tx, a domain.Arena, bet domain.Bet) error {
	bet.Claimed = true
	if err := tx.SaveBet(ctx, bet); err != nil {
		return err
	}
	return tx.SaveArena(ctx, a)
}

// CloseArenaState deletes a settled arena and its bets once every payable
// bet has been claimed, sweeping rounding dust to treasury. Admin only.
func (s *Service) CloseArenaState(ctx context.Context, caller string, id uint64) error {
	var dust int64
	keys := []string{engine.ArenaKey(id), engine.EscrowKey, engine.TreasuryKey}
	err := s.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, err := engine.RequireAdmin(ctx, tx, caller)
		if err != nil {
			return fmt.Errorf("market.CloseArenaState: %w", err)
		}
		a, err := tx.Arena(ctx, id)
		if err != nil {
			return fmt.Errorf("market.CloseArenaState: %w", err)
		}
		if a.State != domain.ArenaResolved && a.State != domain.ArenaCancelled {
			return fmt.Errorf("market.CloseArenaState: arena %d is %s: %w", id, a.State, domain.ErrInvalidStateTransition)
		}

		var payable domain.Side
		if !a.Refunding() {
			payable, _ = a.Outcome.Side()
		}
		open, err := tx.CountUnclaimedBets(ctx, id, payable)
		if err != nil {
			return fmt.Errorf("market.CloseArenaState: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("market.CloseArenaState: arena %d has %d unsettled bets: %w", id, open, domain.ErrInvalidStateTransition)
		}

		if dust, err = escrow.New(tx, cfg).SweepResidual(ctx, a); err != nil {
			return fmt.Errorf("market.CloseArenaState: %w", err)
		}
		if err := tx.DeleteBets(ctx, id); err != nil {
			return fmt.Errorf("market.CloseArenaState: %w", err)
		}
		return tx.DeleteArena(ctx, id)
	})
	if err != nil {
		return err
	}
	slog.Info("market: arena closed", "arena", id, "dust", dust)
	return nil
}

// Arena returns the current record of arena id.
func (s *Service) Arena(ctx context.Context, id uint64) (domain.Arena, error) {
	var a domain.Arena
	err := s.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		a, err = tx.Arena(ctx, id)
		return err
	})
	return a, err
}

// Arenas lists arenas in the given states, all of them when none is given.
func (s *Service) Arenas(ctx context.Context, states ...domain.ArenaState) ([]domain.Arena, error) {
	var out []domain.Arena
	err := s.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.Arenas(ctx, states...)
		return err
	})
	return out, err
}
