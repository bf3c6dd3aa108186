// Package store persists the commander's devices and sequences in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"spotlight/lib/registry"
	"spotlight/lib/sequence"
	"spotlight/lib/store/migrations"
)

type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) PutDevice(ctx context.Context, d registry.Device) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO devices (id, name, address, protocol, inner_leds, outer_leds, last_seen, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    address = excluded.address,
    protocol = excluded.protocol,
    inner_leds = excluded.inner_leds,
    outer_leds = excluded.outer_leds,
    last_seen = excluded.last_seen,
    updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Address, string(d.Protocol), d.InnerPixels, d.OuterPixels,
		toMillis(d.LastSeen), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: put device %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete device %s: %w", id, err)
	}
	return nil
}

// Devices returns every stored device ordered by id. Liveness is not stored
// and reads as unknown.
func (s *Store) Devices(ctx context.Context) ([]registry.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, address, protocol, inner_leds, outer_leds, last_seen
FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	defer rows.Close()

	var out []registry.Device
	for rows.Next() {
		var d registry.Device
		var proto string
		var lastSeen int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Address, &proto, &d.InnerPixels, &d.OuterPixels, &lastSeen); err != nil {
			return nil, fmt.Errorf("store: scan device: %w", err)
		}
		d.Protocol = registry.Protocol(proto)
		d.LastSeen = fromMillis(lastSeen)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	return out, nil
}

func (s *Store) PutSequence(ctx context.Context, seq sequence.Sequence) error {
	body, err := json.Marshal(seq)
	if err != nil {
		return fmt.Errorf("store: encode sequence %s: %w", seq.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sequences (id, name, body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    body = excluded.body,
    updated_at = excluded.updated_at`,
		seq.ID, seq.Name, string(body), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: put sequence %s: %w", seq.ID, err)
	}
	return nil
}

func (s *Store) DeleteSequence(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sequences WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete sequence %s: %w", id, err)
	}
	return nil
}

func (s *Store) Sequences(ctx context.Context) ([]sequence.Sequence, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, body FROM sequences ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: list sequences: %w", err)
	}
	defer rows.Close()

	var out []sequence.Sequence
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("store: scan sequence: %w", err)
		}
		var seq sequence.Sequence
		if err := json.Unmarshal([]byte(body), &seq); err != nil {
			return nil, fmt.Errorf("store: decode sequence %s: %w", id, err)
		}
		out = append(out, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sequences: %w", err)
	}
	return out, nil
}
