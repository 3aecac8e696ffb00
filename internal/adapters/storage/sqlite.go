package storage

// sqlite.go: todo el estado persistente vive en una sola base SQLite.
//
// Estrategia:
//   - Cada operación corre dentro de una transacción (WithTx). Registros,
//     balances del ledger y metadata comparten la misma *sql.Tx, así que un
//     fallo a mitad de operación revierte todo.
//   - Montos en unidades base (INTEGER). Precios como TEXT decimal exacto.
//   - Tiempos como segundos unix (INTEGER); 0 significa "sin valor".

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS global_config (
    id   INTEGER PRIMARY KEY CHECK (id = 1),
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS arenas (
    id               INTEGER PRIMARY KEY,
    state            TEXT    NOT NULL,
    start_price      TEXT    NOT NULL DEFAULT '0',
    end_price        TEXT    NOT NULL DEFAULT '0',
    up_pool          INTEGER NOT NULL DEFAULT 0,
    down_pool        INTEGER NOT NULL DEFAULT 0,
    up_count         INTEGER NOT NULL DEFAULT 0,
    down_count       INTEGER NOT NULL DEFAULT 0,
    outcome          TEXT    NOT NULL DEFAULT '',
    fee              INTEGER NOT NULL DEFAULT 0,
    paid_out         INTEGER NOT NULL DEFAULT 0,
    referral_accrued INTEGER NOT NULL DEFAULT 0,
    opened_at        INTEGER NOT NULL,
    started_at       INTEGER NOT NULL DEFAULT 0,
    ended_at         INTEGER NOT NULL DEFAULT 0
);

-- Una apuesta por (arena, usuario)
CREATE TABLE IF NOT EXISTS bets (
    arena_id     INTEGER NOT NULL,
    user_id      TEXT    NOT NULL,
    side         TEXT    NOT NULL,
    amount       INTEGER NOT NULL,
    claimed      INTEGER NOT NULL DEFAULT 0,
    referrer     TEXT    NOT NULL DEFAULT '',
    referral_fee INTEGER NOT NULL DEFAULT 0,
    placed_at    INTEGER NOT NULL,
    PRIMARY KEY (arena_id, user_id)
);

CREATE TABLE IF NOT EXISTS users (
    id               TEXT PRIMARY KEY,
    referrer         TEXT    NOT NULL DEFAULT '',
    referral_balance INTEGER NOT NULL DEFAULT 0
);

-- seq fija el orden de llegada al bucket: desempata stakes iguales
CREATE TABLE IF NOT EXISTS window_accumulators (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    kind      TEXT    NOT NULL,
    bucket_id INTEGER NOT NULL,
    user_id   TEXT    NOT NULL,
    stake     INTEGER NOT NULL DEFAULT 0,
    claimed   INTEGER NOT NULL DEFAULT 0,
    UNIQUE (kind, bucket_id, user_id)
);

CREATE TABLE IF NOT EXISTS window_scans (
    kind         TEXT    NOT NULL,
    bucket_id    INTEGER NOT NULL,
    stakes       TEXT    NOT NULL DEFAULT '[]',
    cursor_stake INTEGER NOT NULL,
    cursor_seq   INTEGER NOT NULL,
    done         INTEGER NOT NULL DEFAULT 0,
    started_at   INTEGER NOT NULL,
    PRIMARY KEY (kind, bucket_id)
);

CREATE TABLE IF NOT EXISTS window_results (
    kind         TEXT    NOT NULL,
    bucket_id    INTEGER NOT NULL,
    thresholds   TEXT    NOT NULL,
    rewards      TEXT    NOT NULL,
    participants INTEGER NOT NULL DEFAULT 0,
    closed_at    INTEGER NOT NULL,
    PRIMARY KEY (kind, bucket_id)
);

CREATE TABLE IF NOT EXISTS nft_builds (
    user_id    TEXT PRIMARY KEY,
    pending    INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    token   TEXT    NOT NULL,
    account TEXT    NOT NULL,
    amount  INTEGER NOT NULL CHECK (amount >= 0),
    PRIMARY KEY (token, account)
);

CREATE TABLE IF NOT EXISTS metadata (
    mint             TEXT PRIMARY KEY,
    name             TEXT    NOT NULL,
    symbol           TEXT    NOT NULL,
    uri              TEXT    NOT NULL DEFAULT '',
    creator          TEXT    NOT NULL,
    owner            TEXT    NOT NULL,
    attributes       TEXT    NOT NULL DEFAULT '{}',
    holder_account   TEXT    NOT NULL,
    metadata_address TEXT    NOT NULL,
    edition_address  TEXT    NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_acc_standings ON window_accumulators(kind, bucket_id, stake DESC, seq);
CREATE INDEX IF NOT EXISTS idx_bets_arena    ON bets(arena_id, claimed);
CREATE INDEX IF NOT EXISTS idx_arenas_state  ON arenas(state);
`

// SQLiteStore implementa ports.Store usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// WithTx runs fn in a transaction and commits only if fn succeeds.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WithTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.WithTx: commit: %w", err)
	}
	return nil
}

// Close cierra la conexión.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlTx implements every repository over one *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Ledger() ports.TokenLedger        { return &ledger{tx: t.tx} }
func (t *sqlTx) Registry() ports.MetadataRegistry { return &registry{tx: t.tx} }

func (t *sqlTx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := t.tx.QueryRowContext(ctx, "SELECT EXISTS("+query+")", args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound.
func notFound(op, what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %s: %w", op, what, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %s: %w", op, what, err)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func toUnixPtr(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return toUnix(*t)
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func fromUnixPtr(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := fromUnix(v)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
