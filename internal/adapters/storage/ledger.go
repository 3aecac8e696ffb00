package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// ledger implementa ports.TokenLedger sobre la tabla balances de la tx actual.
type ledger struct {
	tx *sql.Tx
}

func (l *ledger) Balance(ctx context.Context, token, account string) (int64, error) {
	var amount int64
	err := l.tx.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE token = ? AND account = ?`, token, account,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger.Balance %s/%s: %w", token, account, err)
	}
	return amount, nil
}

func (l *ledger) Mint(ctx context.Context, token, to string, amount int64) error {
	if err := checkAmount("ledger.Mint", amount); err != nil || amount == 0 {
		return err
	}
	return l.credit(ctx, token, to, amount)
}

func (l *ledger) Transfer(ctx context.Context, token, from, to string, amount int64) error {
	if err := checkAmount("ledger.Transfer", amount); err != nil || amount == 0 {
		return err
	}
	if err := l.debit(ctx, token, from, amount); err != nil {
		return fmt.Errorf("ledger.Transfer %s %s->%s: %w", token, from, to, err)
	}
	return l.credit(ctx, token, to, amount)
}

func (l *ledger) Burn(ctx context.Context, token, from string, amount int64) error {
	if err := checkAmount("ledger.Burn", amount); err != nil || amount == 0 {
		return err
	}
	if err := l.debit(ctx, token, from, amount); err != nil {
		return fmt.Errorf("ledger.Burn %s from %s: %w", token, from, err)
	}
	return nil
}

func (l *ledger) credit(ctx context.Context, token, account string, amount int64) error {
	if _, err := l.tx.ExecContext(ctx, `
		INSERT INTO balances (token, account, amount) VALUES (?, ?, ?)
		ON CONFLICT(token, account) DO UPDATE SET amount = amount + excluded.amount`,
		token, account, amount,
	); err != nil {
		return fmt.Errorf("ledger.credit %s/%s: %w", token, account, err)
	}
	return nil
}

// debit descuenta amount o falla con ErrInsufficientFunds sin tocar el balance.
func (l *ledger) debit(ctx context.Context, token, account string, amount int64) error {
	have, err := l.Balance(ctx, token, account)
	if err != nil {
		return err
	}
	if have < amount {
		return fmt.Errorf("have %d, need %d: %w", have, amount, domain.ErrInsufficientFunds)
	}
	if have == amount {
		_, err = l.tx.ExecContext(ctx, `DELETE FROM balances WHERE token = ? AND account = ?`, token, account)
	} else {
		_, err = l.tx.ExecContext(ctx,
			`UPDATE balances SET amount = amount - ? WHERE token = ? AND account = ?`, amount, token, account)
	}
	if err != nil {
		return fmt.Errorf("ledger.debit %s/%s: %w", token, account, err)
	}
	return nil
}

func checkAmount(op string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%s: negative amount %d: %w", op, amount, domain.ErrInvalidParameter)
	}
	return nil
}
