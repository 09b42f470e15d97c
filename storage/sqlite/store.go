// Package sqlite provides a SQLite-backed arena storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"showdown-arena/game"
	"showdown-arena/storage"
	"showdown-arena/storage/sqlite/migrations"
)

// Store persists creatures and battle results in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SeedCreature inserts or replaces a creature. It is used for development
// data and tests; party management itself lives outside this service.
func (s *Store) SeedCreature(ctx context.Context, slot int, c storage.LeadCreature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.CreatureID) == "" || strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("creature id and owner id are required")
	}
	if len(c.Moves) > game.MaxMoves {
		return fmt.Errorf("creature %s: at most %d moves", c.CreatureID, game.MaxMoves)
	}
	moves, err := json.Marshal(c.Moves)
	if err != nil {
		return fmt.Errorf("encode moves: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO creatures (
		   id, owner_id, species_id, nickname, party_slot, level, experience,
		   hp, max_hp, base_hp, base_atk, base_def, base_spa, base_spd, base_spe,
		   moves_json, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CreatureID, c.OwnerID, c.SpeciesID, c.Nickname, slot, c.Level, c.Experience,
		c.HP, c.MaxHP,
		c.BaseStats.HP, c.BaseStats.Attack, c.BaseStats.Defense,
		c.BaseStats.SpAttack, c.BaseStats.SpDefense, c.BaseStats.Speed,
		string(moves), toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("seed creature %s: %w", c.CreatureID, err)
	}
	return nil
}

// LeadCreature returns the creature in the lowest party slot for userID.
func (s *Store) LeadCreature(ctx context.Context, userID string) (storage.LeadCreature, error) {
	if err := ctx.Err(); err != nil {
		return storage.LeadCreature{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, owner_id, species_id, nickname, level, experience, hp, max_hp,
		        base_hp, base_atk, base_def, base_spa, base_spd, base_spe, moves_json
		   FROM creatures
		  WHERE owner_id = ?
		  ORDER BY party_slot ASC
		  LIMIT 1`, userID)
	c, err := scanCreature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.LeadCreature{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.LeadCreature{}, fmt.Errorf("get lead creature for %s: %w", userID, err)
	}
	return c, nil
}

func (s *Store) creature(ctx context.Context, tx *sql.Tx, id string) (storage.LeadCreature, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, owner_id, species_id, nickname, level, experience, hp, max_hp,
		        base_hp, base_atk, base_def, base_spa, base_spd, base_spe, moves_json
		   FROM creatures
		  WHERE id = ?`, id)
	c, err := scanCreature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.LeadCreature{}, storage.ErrNotFound
	}
	return c, err
}

func scanCreature(row *sql.Row) (storage.LeadCreature, error) {
	var (
		c     storage.LeadCreature
		moves string
	)
	if err := row.Scan(
		&c.CreatureID, &c.OwnerID, &c.SpeciesID, &c.Nickname, &c.Level, &c.Experience,
		&c.HP, &c.MaxHP,
		&c.BaseStats.HP, &c.BaseStats.Attack, &c.BaseStats.Defense,
		&c.BaseStats.SpAttack, &c.BaseStats.SpDefense, &c.BaseStats.Speed,
		&moves,
	); err != nil {
		return storage.LeadCreature{}, err
	}
	if err := json.Unmarshal([]byte(moves), &c.Moves); err != nil {
		return storage.LeadCreature{}, fmt.Errorf("decode moves for %s: %w", c.CreatureID, err)
	}
	return c, nil
}

// RecordBattle stores one finished battle. Recording the same battle twice
// returns storage.ErrAlreadyExists.
func (s *Store) RecordBattle(ctx context.Context, record storage.BattleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("battle id is required")
	}
	endedAt := record.EndedAt
	if endedAt.IsZero() {
		endedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO battles (id, winner_id, loser_id, xp_awarded, turns, reason, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.WinnerID, record.LoserID, record.XPAwarded, record.Turns,
		record.Reason, toMillis(endedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("record battle %s: %w", record.ID, err)
	}
	return nil
}

// ApplyProgression grants experience to the winner, rolling levels and max
// HP, and writes both creatures' surviving HP in one transaction.
func (s *Store) ApplyProgression(ctx context.Context, p storage.Progression) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin progression: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(s.now())
	if p.WinnerCreatureID != "" {
		winner, err := s.creature(ctx, tx, p.WinnerCreatureID)
		if err != nil {
			return fmt.Errorf("load winner %s: %w", p.WinnerCreatureID, err)
		}
		prog := game.ApplyExperience(winner.Level, winner.Experience, p.XPGained,
			winner.BaseStats.HP, clamp(p.WinnerHP, winner.MaxHP), winner.MaxHP)
		if _, err := tx.ExecContext(ctx,
			`UPDATE creatures SET level = ?, experience = ?, hp = ?, max_hp = ?, updated_at = ? WHERE id = ?`,
			prog.Level, prog.Experience, prog.HP, prog.MaxHP, now, winner.CreatureID,
		); err != nil {
			return fmt.Errorf("update winner %s: %w", winner.CreatureID, err)
		}
	}
	if p.LoserCreatureID != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE creatures SET hp = MIN(MAX(?, 0), max_hp), updated_at = ? WHERE id = ?`,
			p.LoserHP, now, p.LoserCreatureID,
		)
		if err != nil {
			return fmt.Errorf("update loser %s: %w", p.LoserCreatureID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("load loser %s: %w", p.LoserCreatureID, storage.ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit progression: %w", err)
	}
	return nil
}

func clamp(hp, maxHP int) int {
	if hp < 0 {
		return 0
	}
	if hp > maxHP {
		return maxHP
	}
	return hp
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
