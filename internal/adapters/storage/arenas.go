package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/shopspring/decimal"
)

const arenaColumns = `id, state, start_price, end_price, up_pool, down_pool, up_count, down_count,
	outcome, fee, paid_out, referral_accrued, opened_at, started_at, ended_at`

func (t *sqlTx) CreateArena(ctx context.Context, a domain.Arena) error {
	ok, err := t.exists(ctx, `SELECT 1 FROM arenas WHERE id = ?`, int64(a.ID))
	if err != nil {
		return fmt.Errorf("storage.CreateArena %d: %w", a.ID, err)
	}
	if ok {
		return fmt.Errorf("storage.CreateArena %d: %w", a.ID, domain.ErrDuplicateEntry)
	}
	return t.SaveArena(ctx, a)
}

func (t *sqlTx) SaveArena(ctx context.Context, a domain.Arena) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO arenas (`+arenaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state            = excluded.state,
			start_price      = excluded.start_price,
			end_price        = excluded.end_price,
			up_pool          = excluded.up_pool,
			down_pool        = excluded.down_pool,
			up_count         = excluded.up_count,
			down_count       = excluded.down_count,
			outcome          = excluded.outcome,
			fee              = excluded.fee,
			paid_out         = excluded.paid_out,
			referral_accrued = excluded.referral_accrued,
			started_at       = excluded.started_at,
			ended_at         = excluded.ended_at`,
		int64(a.ID), string(a.State), a.StartPrice.String(), a.EndPrice.String(),
		a.UpPool, a.DownPool, a.UpCount, a.DownCount,
		string(a.Outcome), a.Fee, a.PaidOut, a.ReferralAccrued,
		toUnix(a.OpenedAt), toUnixPtr(a.StartedAt), toUnixPtr(a.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveArena %d: %w", a.ID, err)
	}
	return nil
}

func (t *sqlTx) Arena(ctx context.Context, id uint64) (domain.Arena, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+arenaColumns+` FROM arenas WHERE id = ?`, int64(id))
	a, err := scanArena(row)
	if err != nil {
		return domain.Arena{}, notFound("storage.Arena", fmt.Sprintf("arena %d", id), err)
	}
	return a, nil
}

// Arenas lista arenas en los estados dados (todas si no se pasa ninguno).
func (t *sqlTx) Arenas(ctx context.Context, states ...domain.ArenaState) ([]domain.Arena, error) {
	query := `SELECT ` + arenaColumns + ` FROM arenas`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE state IN (?` + strings.Repeat(", ?", len(states)-1) + `)`
		for _, s := range states {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY id`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.Arenas: %w", err)
	}
	defer rows.Close()

	var out []domain.Arena
	for rows.Next() {
		a, err := scanArena(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.Arenas: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *sqlTx) DeleteArena(ctx context.Context, id uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM arenas WHERE id = ?`, int64(id)); err != nil {
		return fmt.Errorf("storage.DeleteArena %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArena(r rowScanner) (domain.Arena, error) {
	var (
		a                      domain.Arena
		state, outcome         string
		startPrice, endPrice   string
		opened, started, ended int64
	)
	if err := r.Scan(&a.ID, &state, &startPrice, &endPrice, &a.UpPool, &a.DownPool,
		&a.UpCount, &a.DownCount, &outcome, &a.Fee, &a.PaidOut, &a.ReferralAccrued,
		&opened, &started, &ended); err != nil {
		return domain.Arena{}, err
	}
	var err error
	if a.StartPrice, err = decimal.NewFromString(startPrice); err != nil {
		return domain.Arena{}, fmt.Errorf("start price %q: %w", startPrice, err)
	}
	if a.EndPrice, err = decimal.NewFromString(endPrice); err != nil {
		return domain.Arena{}, fmt.Errorf("end price %q: %w", endPrice, err)
	}
	a.State = domain.ArenaState(state)
	a.Outcome = domain.Outcome(outcome)
	a.OpenedAt = fromUnix(opened)
	a.StartedAt = fromUnixPtr(started)
	a.EndedAt = fromUnixPtr(ended)
	return a, nil
}

func (t *sqlTx) CreateBet(ctx context.Context, b domain.Bet) error {
	ok, err := t.exists(ctx, `SELECT 1 FROM bets WHERE arena_id = ? AND user_id = ?`, int64(b.ArenaID), b.UserID)
	if err != nil {
		return fmt.Errorf("storage.CreateBet: %w", err)
	}
	if ok {
		return fmt.Errorf("storage.CreateBet: arena %d user %s: %w", b.ArenaID, b.UserID, domain.ErrDuplicateEntry)
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets (arena_id, user_id, side, amount, claimed, referrer, referral_fee, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(b.ArenaID), b.UserID, string(b.Side), b.Amount, boolToInt(b.Claimed),
		b.Referrer, b.ReferralFee, toUnix(b.PlacedAt),
	); err != nil {
		return fmt.Errorf("storage.CreateBet: %w", err)
	}
	return nil
}

func (t *sqlTx) Bet(ctx context.Context, arenaID uint64, userID string) (domain.Bet, error) {
	b := domain.Bet{ArenaID: arenaID, UserID: userID}
	var (
		side   string
		placed int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT side, amount, claimed, referrer, referral_fee, placed_at
		FROM bets WHERE arena_id = ? AND user_id = ?`, int64(arenaID), userID,
	).Scan(&side, &b.Amount, &b.Claimed, &b.Referrer, &b.ReferralFee, &placed)
	if err != nil {
		return domain.Bet{}, notFound("storage.Bet", fmt.Sprintf("arena %d user %s", arenaID, userID), err)
	}
	b.Side = domain.Side(side)
	b.PlacedAt = fromUnix(placed)
	return b, nil
}

// SaveBet solo actualiza el flag de claim: el resto de la apuesta es inmutable.
func (t *sqlTx) SaveBet(ctx context.Context, b domain.Bet) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bets SET claimed = ? WHERE arena_id = ? AND user_id = ?`,
		boolToInt(b.Claimed), int64(b.ArenaID), b.UserID,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveBet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.SaveBet: arena %d user %s: %w", b.ArenaID, b.UserID, domain.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) CountUnclaimedBets(ctx context.Context, arenaID uint64, side domain.Side) (int, error) {
	var (
		n   int
		err error
	)
	if side == "" {
		err = t.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bets WHERE arena_id = ? AND claimed = 0`, int64(arenaID)).Scan(&n)
	} else {
		err = t.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bets WHERE arena_id = ? AND claimed = 0 AND side = ?`, int64(arenaID), string(side)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("storage.CountUnclaimedBets %d: %w", arenaID, err)
	}
	return n, nil
}

func (t *sqlTx) DeleteBets(ctx context.Context, arenaID uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM bets WHERE arena_id = ?`, int64(arenaID)); err != nil {
		return fmt.Errorf("storage.DeleteBets %d: %w", arenaID, err)
	}
	return nil
}
