package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// FeeDenominator is the basis-point denominator used by every fee rate.
const FeeDenominator = 10_000

// ArenaState is the lifecycle state of a betting round.
type ArenaState string

const (
	ArenaOpen      ArenaState = "OPEN"
	ArenaActive    ArenaState = "ACTIVE"
	ArenaResolved  ArenaState = "RESOLVED"
	ArenaCancelled ArenaState = "CANCELLED"
)

// Side is the direction a bettor picks.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// Valid reports whether s is one of the two betting sides.
func (s Side) Valid() bool { return s == SideUp || s == SideDown }

// Outcome is the settlement result of an arena.
type Outcome string

const (
	OutcomeNone   Outcome = ""
	OutcomeUp     Outcome = "UP"
	OutcomeDown   Outcome = "DOWN"
	OutcomeRefund Outcome = "REFUND"
)

// Side returns the winning side for a directional outcome.
func (o Outcome) Side() (Side, bool) {
	switch o {
	case OutcomeUp:
		return SideUp, true
	case OutcomeDown:
		return SideDown, true
	}
	return "", false
}

// Arena is one betting round on the direction of an asset price.
type Arena struct {
	ID         uint64
	State      ArenaState
	StartPrice decimal.Decimal
	EndPrice   decimal.Decimal
	UpPool     int64
	DownPool   int64
	UpCount    int
	DownCount  int
	Outcome    Outcome

	// Fee is the platform fee swept to treasury at settlement.
	Fee int64
	// PaidOut is the sum of winner payouts already transferred out of escrow.
	PaidOut int64
	// ReferralAccrued is what treasury paid into the referral vault for this
	// arena's referred bets.
	ReferralAccrued int64

	OpenedAt  time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
}

// TotalPool is the sum of both side pools.
func (a Arena) TotalPool() int64 { return a.UpPool + a.DownPool }

// AcceptsBets reports whether bets can still be placed.
func (a Arena) AcceptsBets() bool {
	return a.State == ArenaOpen || a.State == ArenaActive
}

// Pool returns the pool of the given side.
func (a Arena) Pool(s Side) int64 {
	if s == SideUp {
		return a.UpPool
	}
	return a.DownPool
}

// AddStake grows the pool of side s by amount and counts the bettor.
func (a *Arena) AddStake(s Side, amount int64) {
	if s == SideUp {
		a.UpPool += amount
		a.UpCount++
		return
	}
	a.DownPool += amount
	a.DownCount++
}

// RemoveStake shrinks the pool of side s after a refund.
func (a *Arena) RemoveStake(s Side, amount int64) {
	if s == SideUp {
		a.UpPool -= amount
		return
	}
	a.DownPool -= amount
}

// Start moves an open arena to Active, recording the start price.
func (a *Arena) Start(price decimal.Decimal, at time.Time) error {
	if a.State != ArenaOpen {
		return fmt.Errorf("arena %d: start from %s: %w", a.ID, a.State, ErrInvalidStateTransition)
	}
	a.State = ArenaActive
	a.StartPrice = price
	a.StartedAt = &at
	return nil
}

// End resolves an active arena with the end price and returns its outcome.
func (a *Arena) End(price decimal.Decimal, at time.Time) (Outcome, error) {
	if a.State != ArenaActive {
		return OutcomeNone, fmt.Errorf("arena %d: end from %s: %w", a.ID, a.State, ErrInvalidStateTransition)
	}
	a.State = ArenaResolved
	a.EndPrice = price
	a.EndedAt = &at
	a.Outcome = ResolveOutcome(a.StartPrice, price, a.UpPool, a.DownPool)
	return a.Outcome, nil
}

// Cancel aborts an open or active arena.
func (a *Arena) Cancel(at time.Time) error {
	if !a.AcceptsBets() {
		return fmt.Errorf("arena %d: cancel from %s: %w", a.ID, a.State, ErrInvalidStateTransition)
	}
	a.State = ArenaCancelled
	a.EndedAt = &at
	return nil
}

// Refunding reports whether every bet of a settled arena is returned at face value.
func (a Arena) Refunding() bool {
	return a.State == ArenaCancelled || (a.State == ArenaResolved && a.Outcome == OutcomeRefund)
}

// ResolveOutcome picks the winning side from the price move.
// An unchanged price, or a winning side nobody bet on, refunds everyone.
func ResolveOutcome(start, end decimal.Decimal, up, down int64) Outcome {
	switch end.Cmp(start) {
	case 1:
		if up == 0 {
			return OutcomeRefund
		}
		return OutcomeUp
	case -1:
		if down == 0 {
			return OutcomeRefund
		}
		return OutcomeDown
	}
	return OutcomeRefund
}

// SettlementFee is the platform cut taken from the losing pool.
func SettlementFee(a Arena, feeBps int64) int64 {
	win, ok := a.Outcome.Side()
	if !ok {
		return 0
	}
	losing := a.TotalPool() - a.Pool(win)
	return MulDiv(losing, feeBps, FeeDenominator)
}

// Payout is what a winning bet receives: its stake plus a pro-rata share
// of the losing pool net of the fee, rounded down.
func Payout(a Arena, b Bet) (int64, error) {
	if a.Refunding() {
		return b.Amount, nil
	}
	win, ok := a.Outcome.Side()
	if !ok || a.State != ArenaResolved {
		return 0, fmt.Errorf("arena %d not resolved: %w", a.ID, ErrInvalidStateTransition)
	}
	if b.Side != win {
		return 0, fmt.Errorf("bet on %s lost: %w", b.Side, ErrNotEligible)
	}
	winning := a.Pool(win)
	share := a.TotalPool() - winning - a.Fee
	return b.Amount + MulDiv(b.Amount, share, winning), nil
}

// MulDiv returns floor(x*y/d) without intermediate overflow.
func MulDiv(x, y, d int64) int64 {
	if d == 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(x), big.NewInt(y))
	return n.Quo(n, big.NewInt(d)).Int64()
}

// Bet is one user's position in an arena. A user holds at most one per arena.
type Bet struct {
	ArenaID     uint64
	UserID      string
	Side        Side
	Amount      int64
	Claimed     bool
	Referrer    string
	ReferralFee int64
	PlacedAt    time.Time
}
