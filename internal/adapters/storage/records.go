package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// CreateConfig persiste la config global una sola vez.
func (t *sqlTx) CreateConfig(ctx context.Context, cfg domain.GlobalConfig) error {
	ok, err := t.exists(ctx, `SELECT 1 FROM global_config WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("storage.CreateConfig: %w", err)
	}
	if ok {
		return fmt.Errorf("storage.CreateConfig: %w", domain.ErrDuplicateEntry)
	}
	return t.SaveConfig(ctx, cfg)
}

func (t *sqlTx) SaveConfig(ctx context.Context, cfg domain.GlobalConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storage.SaveConfig: marshal: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO global_config (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, string(data),
	); err != nil {
		return fmt.Errorf("storage.SaveConfig: %w", err)
	}
	return nil
}

func (t *sqlTx) Config(ctx context.Context) (domain.GlobalConfig, error) {
	var data string
	if err := t.tx.QueryRowContext(ctx, `SELECT data FROM global_config WHERE id = 1`).Scan(&data); err != nil {
		return domain.GlobalConfig{}, notFound("storage.Config", "global config", err)
	}
	var cfg domain.GlobalConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("storage.Config: unmarshal: %w", err)
	}
	return cfg, nil
}

func (t *sqlTx) User(ctx context.Context, id string) (domain.User, error) {
	u := domain.User{ID: id}
	err := t.tx.QueryRowContext(ctx,
		`SELECT referrer, referral_balance FROM users WHERE id = ?`, id,
	).Scan(&u.Referrer, &u.ReferralBalance)
	if err != nil {
		return domain.User{}, notFound("storage.User", id, err)
	}
	return u, nil
}

func (t *sqlTx) SaveUser(ctx context.Context, u domain.User) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (id, referrer, referral_balance) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET referrer = excluded.referrer, referral_balance = excluded.referral_balance`,
		u.ID, u.Referrer, u.ReferralBalance,
	); err != nil {
		return fmt.Errorf("storage.SaveUser %s: %w", u.ID, err)
	}
	return nil
}

func (t *sqlTx) NftBuild(ctx context.Context, userID string) (domain.NftBuild, error) {
	b := domain.NftBuild{UserID: userID}
	var updated int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT pending, updated_at FROM nft_builds WHERE user_id = ?`, userID,
	).Scan(&b.Pending, &updated)
	if err != nil {
		return domain.NftBuild{}, notFound("storage.NftBuild", userID, err)
	}
	b.UpdatedAt = fromUnix(updated)
	return b, nil
}

func (t *sqlTx) SaveNftBuild(ctx context.Context, b domain.NftBuild) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO nft_builds (user_id, pending, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET pending = excluded.pending, updated_at = excluded.updated_at`,
		b.UserID, b.Pending, toUnix(b.UpdatedAt),
	); err != nil {
		return fmt.Errorf("storage.SaveNftBuild %s: %w", b.UserID, err)
	}
	return nil
}

func (t *sqlTx) DeleteNftBuild(ctx context.Context, userID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM nft_builds WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("storage.DeleteNftBuild %s: %w", userID, err)
	}
	return nil
}
