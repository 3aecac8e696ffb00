package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// AddStake hace upsert del acumulador; seq se conserva desde la primera apuesta.
func (t *sqlTx) AddStake(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string, amount int64) (domain.Accumulator, error) {
	acc := domain.Accumulator{Kind: kind, BucketID: bucket, UserID: userID}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO window_accumulators (kind, bucket_id, user_id, stake) VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, bucket_id, user_id) DO UPDATE SET stake = stake + excluded.stake
		RETURNING seq, stake, claimed`,
		string(kind), int64(bucket), userID, amount,
	).Scan(&acc.Seq, &acc.Stake, &acc.Claimed)
	if err != nil {
		return domain.Accumulator{}, fmt.Errorf("storage.AddStake %s/%d %s: %w", kind, bucket, userID, err)
	}
	return acc, nil
}

func (t *sqlTx) Accumulator(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string) (domain.Accumulator, error) {
	acc := domain.Accumulator{Kind: kind, BucketID: bucket, UserID: userID}
	err := t.tx.QueryRowContext(ctx, `
		SELECT seq, stake, claimed FROM window_accumulators
		WHERE kind = ? AND bucket_id = ? AND user_id = ?`,
		string(kind), int64(bucket), userID,
	).Scan(&acc.Seq, &acc.Stake, &acc.Claimed)
	if err != nil {
		return domain.Accumulator{}, notFound("storage.Accumulator", fmt.Sprintf("%s/%d %s", kind, bucket, userID), err)
	}
	return acc, nil
}

func (t *sqlTx) MarkClaimed(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE window_accumulators SET claimed = 1
		WHERE kind = ? AND bucket_id = ? AND user_id = ?`,
		string(kind), int64(bucket), userID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkClaimed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.MarkClaimed %s/%d %s: %w", kind, bucket, userID, domain.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) DeleteAccumulator(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM window_accumulators WHERE kind = ? AND bucket_id = ? AND user_id = ?`,
		string(kind), int64(bucket), userID,
	); err != nil {
		return fmt.Errorf("storage.DeleteAccumulator: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteAccumulators(ctx context.Context, kind domain.WindowKind, bucket uint64) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM window_accumulators WHERE kind = ? AND bucket_id = ?`,
		string(kind), int64(bucket),
	); err != nil {
		return fmt.Errorf("storage.DeleteAccumulators: %w", err)
	}
	return nil
}

func (t *sqlTx) CountAccumulators(ctx context.Context, kind domain.WindowKind, bucket uint64) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM window_accumulators WHERE kind = ? AND bucket_id = ?`,
		string(kind), int64(bucket),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountAccumulators: %w", err)
	}
	return n, nil
}

func (t *sqlTx) CountUnclaimedRanked(ctx context.Context, kind domain.WindowKind, bucket uint64, minStake int64) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM window_accumulators
		WHERE kind = ? AND bucket_id = ? AND claimed = 0 AND stake >= ?`,
		string(kind), int64(bucket), minStake,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountUnclaimedRanked: %w", err)
	}
	return n, nil
}

func (t *sqlTx) ScanAccumulators(ctx context.Context, kind domain.WindowKind, bucket uint64, afterStake, afterSeq int64, limit int) ([]domain.Accumulator, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT seq, user_id, stake, claimed FROM window_accumulators
		WHERE kind = ? AND bucket_id = ? AND (stake < ? OR (stake = ? AND seq > ?))
		ORDER BY stake DESC, seq ASC
		LIMIT ?`,
		string(kind), int64(bucket), afterStake, afterStake, afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ScanAccumulators: %w", err)
	}
	defer rows.Close()

	var out []domain.Accumulator
	for rows.Next() {
		acc := domain.Accumulator{Kind: kind, BucketID: bucket}
		if err := rows.Scan(&acc.Seq, &acc.UserID, &acc.Stake, &acc.Claimed); err != nil {
			return nil, fmt.Errorf("storage.ScanAccumulators: scan: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (t *sqlTx) PendingBuckets(ctx context.Context, kind domain.WindowKind, before uint64) ([]uint64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT DISTINCT a.bucket_id FROM window_accumulators a
		WHERE a.kind = ? AND a.bucket_id < ?
		  AND NOT EXISTS (SELECT 1 FROM window_results r WHERE r.kind = a.kind AND r.bucket_id = a.bucket_id)
		ORDER BY a.bucket_id`,
		string(kind), int64(before),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.PendingBuckets: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var b int64
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("storage.PendingBuckets: scan: %w", err)
		}
		out = append(out, uint64(b))
	}
	return out, rows.Err()
}

func (t *sqlTx) BucketClosed(ctx context.Context, kind domain.WindowKind, bucket uint64) (bool, error) {
	ok, err := t.exists(ctx, `
		SELECT 1 FROM window_results WHERE kind = ? AND bucket_id = ?
		UNION ALL
		SELECT 1 FROM window_scans WHERE kind = ? AND bucket_id = ?`,
		string(kind), int64(bucket), string(kind), int64(bucket),
	)
	if err != nil {
		return false, fmt.Errorf("storage.BucketClosed: %w", err)
	}
	return ok, nil
}

func (t *sqlTx) WindowScan(ctx context.Context, kind domain.WindowKind, bucket uint64) (domain.WindowScan, error) {
	s := domain.WindowScan{Kind: kind, BucketID: bucket}
	var (
		stakes  string
		started int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT stakes, cursor_stake, cursor_seq, done, started_at
		FROM window_scans WHERE kind = ? AND bucket_id = ?`,
		string(kind), int64(bucket),
	).Scan(&stakes, &s.CursorStake, &s.CursorSeq, &s.Done, &started)
	if err != nil {
		return domain.WindowScan{}, notFound("storage.WindowScan", fmt.Sprintf("%s/%d", kind, bucket), err)
	}
	if err := json.Unmarshal([]byte(stakes), &s.Stakes); err != nil {
		return domain.WindowScan{}, fmt.Errorf("storage.WindowScan: stakes: %w", err)
	}
	s.StartedAt = fromUnix(started)
	return s, nil
}

func (t *sqlTx) SaveWindowScan(ctx context.Context, s domain.WindowScan) error {
	stakes, err := json.Marshal(nonNil(s.Stakes))
	if err != nil {
		return fmt.Errorf("storage.SaveWindowScan: marshal: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO window_scans (kind, bucket_id, stakes, cursor_stake, cursor_seq, done, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, bucket_id) DO UPDATE SET
			stakes       = excluded.stakes,
			cursor_stake = excluded.cursor_stake,
			cursor_seq   = excluded.cursor_seq,
			done         = excluded.done`,
		string(s.Kind), int64(s.BucketID), string(stakes), s.CursorStake, s.CursorSeq,
		boolToInt(s.Done), toUnix(s.StartedAt),
	); err != nil {
		return fmt.Errorf("storage.SaveWindowScan: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteWindowScan(ctx context.Context, kind domain.WindowKind, bucket uint64) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM window_scans WHERE kind = ? AND bucket_id = ?`, string(kind), int64(bucket),
	); err != nil {
		return fmt.Errorf("storage.DeleteWindowScan: %w", err)
	}
	return nil
}

func (t *sqlTx) CreateWindowResult(ctx context.Context, r domain.WindowResult) error {
	ok, err := t.exists(ctx,
		`SELECT 1 FROM window_results WHERE kind = ? AND bucket_id = ?`, string(r.Kind), int64(r.BucketID))
	if err != nil {
		return fmt.Errorf("storage.CreateWindowResult: %w", err)
	}
	if ok {
		return fmt.Errorf("storage.CreateWindowResult %s/%d: %w", r.Kind, r.BucketID, domain.ErrDuplicateEntry)
	}
	thresholds, err := json.Marshal(nonNil(r.Thresholds))
	if err != nil {
		return fmt.Errorf("storage.CreateWindowResult: marshal: %w", err)
	}
	rewards, err := json.Marshal(nonNil(r.Rewards))
	if err != nil {
		return fmt.Errorf("storage.CreateWindowResult: marshal: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO window_results (kind, bucket_id, thresholds, rewards, participants, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.Kind), int64(r.BucketID), string(thresholds), string(rewards), r.Participants, toUnix(r.ClosedAt),
	); err != nil {
		return fmt.Errorf("storage.CreateWindowResult: %w", err)
	}
	return nil
}

func (t *sqlTx) WindowResult(ctx context.Context, kind domain.WindowKind, bucket uint64) (domain.WindowResult, error) {
	r := domain.WindowResult{Kind: kind, BucketID: bucket}
	var (
		thresholds, rewards string
		closed              int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT thresholds, rewards, participants, closed_at
		FROM window_results WHERE kind = ? AND bucket_id = ?`,
		string(kind), int64(bucket),
	).Scan(&thresholds, &rewards, &r.Participants, &closed)
	if err != nil {
		return domain.WindowResult{}, notFound("storage.WindowResult", fmt.Sprintf("%s/%d", kind, bucket), err)
	}
	if err := json.Unmarshal([]byte(thresholds), &r.Thresholds); err != nil {
		return domain.WindowResult{}, fmt.Errorf("storage.WindowResult: thresholds: %w", err)
	}
	if err := json.Unmarshal([]byte(rewards), &r.Rewards); err != nil {
		return domain.WindowResult{}, fmt.Errorf("storage.WindowResult: rewards: %w", err)
	}
	r.ClosedAt = fromUnix(closed)
	return r, nil
}

func (t *sqlTx) DeleteWindowResult(ctx context.Context, kind domain.WindowKind, bucket uint64) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM window_results WHERE kind = ? AND bucket_id = ?`, string(kind), int64(bucket),
	); err != nil {
		return fmt.Errorf("storage.DeleteWindowResult: %w", err)
	}
	return nil
}

func nonNil(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}
