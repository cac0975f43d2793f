// Package store persists the durable session records to Postgres and keeps
// an append-only audit log of auction and trade lifecycles for replay.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tycoon/internal/bank"
	"tycoon/internal/game"
	"tycoon/internal/ledger"
)

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

var bootstrapStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS tycoon`,
	`CREATE TABLE IF NOT EXISTS tycoon.players (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cash BIGINT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL,
		human BOOLEAN NOT NULL,
		escape_cards INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tycoon.properties (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		base_price BIGINT NOT NULL,
		base_rent BIGINT NOT NULL,
		price BIGINT NOT NULL,
		rent BIGINT NOT NULL,
		improvement INT NOT NULL DEFAULT 0,
		owner_id TEXT NOT NULL DEFAULT '',
		lien BOOLEAN NOT NULL DEFAULT false,
		lien_kind TEXT NOT NULL DEFAULT '',
		lien_amount BIGINT NOT NULL DEFAULT 0,
		lien_start_lap INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tycoon.instruments (
		id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		principal BIGINT NOT NULL,
		rate DOUBLE PRECISION NOT NULL,
		start_lap INT NOT NULL,
		term_laps INT NOT NULL DEFAULT 0,
		collateral TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL,
		unpaid_laps INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tycoon.session (
		id INT PRIMARY KEY DEFAULT 1,
		lap INT NOT NULL,
		treasury BIGINT NOT NULL,
		fund_state JSONB NOT NULL,
		economy_state JSONB NOT NULL,
		quoted_rate DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tycoon.audit_log (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		ref_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range bootstrapStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

// SaveSnapshot replaces the durable records with the snapshot contents in
// one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"tycoon.players", "tycoon.properties", "tycoon.instruments", "tycoon.session"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	for _, p := range snap.Ledger.Players {
		_, err := tx.Exec(ctx, `
			INSERT INTO tycoon.players (id, name, cash, position, active, human, escape_cards)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, p.Name, p.Cash, p.Position, p.Active, p.Human, p.EscapeCards)
		if err != nil {
			return err
		}
	}
	for _, p := range snap.Ledger.Properties {
		_, err := tx.Exec(ctx, `
			INSERT INTO tycoon.properties (id, group_id, base_price, base_rent, price, rent, improvement, owner_id, lien, lien_kind, lien_amount, lien_start_lap)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, p.ID, p.Group, p.BasePrice, p.BaseRent, p.Price, p.Rent, p.Improvement, p.OwnerID, p.Lien, string(p.LienKind), p.LienAmount, p.LienStartLap)
		if err != nil {
			return err
		}
	}
	for _, inst := range snap.Credit.Instruments {
		_, err := tx.Exec(ctx, `
			INSERT INTO tycoon.instruments (id, player_id, kind, principal, rate, start_lap, term_laps, collateral, active, unpaid_laps)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, inst.ID, inst.PlayerID, string(inst.Kind), inst.Principal, inst.Rate, inst.StartLap, inst.TermLaps, inst.Collateral, inst.Active, inst.UnpaidLaps)
		if err != nil {
			return err
		}
	}

	fundJSON, err := json.Marshal(snap.Fund)
	if err != nil {
		return err
	}
	econJSON, err := json.Marshal(snap.Economy)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tycoon.session (id, lap, treasury, fund_state, economy_state, quoted_rate)
		VALUES (1, $1, $2, $3, $4, $5)
	`, snap.Lap, snap.Ledger.Treasury, fundJSON, econJSON, snap.Credit.QuotedRate)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LoadSnapshot reads the durable records back. The second return is false
// when no session row exists yet.
func (s *Store) LoadSnapshot(ctx context.Context) (game.Snapshot, bool, error) {
	var snap game.Snapshot
	var fundJSON, econJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT lap, treasury, fund_state, economy_state, quoted_rate
		FROM tycoon.session
		WHERE id = 1
	`).Scan(&snap.Lap, &snap.Ledger.Treasury, &fundJSON, &econJSON, &snap.Credit.QuotedRate)
	if err == pgx.ErrNoRows {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(fundJSON, &snap.Fund); err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(econJSON, &snap.Economy); err != nil {
		return snap, false, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, cash, position, active, human, escape_cards
		FROM tycoon.players ORDER BY id
	`)
	if err != nil {
		return snap, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ledger.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Cash, &p.Position, &p.Active, &p.Human, &p.EscapeCards); err != nil {
			return snap, false, err
		}
		snap.Ledger.Players = append(snap.Ledger.Players, p)
	}
	rows.Close()

	rows, err = s.db.Query(ctx, `
		SELECT id, group_id, base_price, base_rent, price, rent, improvement, owner_id, lien, lien_kind, lien_amount, lien_start_lap
		FROM tycoon.properties ORDER BY id
	`)
	if err != nil {
		return snap, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ledger.Property
		var lienKind string
		if err := rows.Scan(&p.ID, &p.Group, &p.BasePrice, &p.BaseRent, &p.Price, &p.Rent, &p.Improvement, &p.OwnerID, &p.Lien, &lienKind, &p.LienAmount, &p.LienStartLap); err != nil {
			return snap, false, err
		}
		p.LienKind = ledger.LienKind(lienKind)
		snap.Ledger.Properties = append(snap.Ledger.Properties, p)
	}
	rows.Close()

	rows, err = s.db.Query(ctx, `
		SELECT id, player_id, kind, principal, rate, start_lap, term_laps, collateral, active, unpaid_laps
		FROM tycoon.instruments ORDER BY id
	`)
	if err != nil {
		return snap, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var inst bank.Instrument
		var kind string
		if err := rows.Scan(&inst.ID, &inst.PlayerID, &kind, &inst.Principal, &inst.Rate, &inst.StartLap, &inst.TermLaps, &inst.Collateral, &inst.Active, &inst.UnpaidLaps); err != nil {
			return snap, false, err
		}
		inst.Kind = bank.Kind(kind)
		snap.Credit.Instruments = append(snap.Credit.Instruments, inst)
	}
	return snap, true, nil
}

// AppendAudit durably logs an auction or trade lifecycle record.
func (s *Store) AppendAudit(ctx context.Context, kind, refID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO tycoon.audit_log (kind, ref_id, payload)
		VALUES ($1, $2, $3)
	`, kind, refID, raw)
	if err != nil {
		s.log.Error("audit append failed", "kind", kind, "ref", refID, "err", err)
	}
	return err
}
