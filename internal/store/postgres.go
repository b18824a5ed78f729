package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/routing"
)

// PostgresStore keeps one row per user in the relay_routes table. Update
// locks the row for the duration of the read-modify-write, which gives the
// per-user serialization the file backend gets from its mutex.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-connected database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type routeRow struct {
	UserID  string         `db:"user_id"`
	Source  sql.NullString `db:"source"`
	Targets []byte         `db:"targets"`
}

func (r routeRow) entry(ctx context.Context) routing.Entry {
	var e routing.Entry
	if r.Source.Valid {
		if ref, err := routing.ParseRef(r.Source.String); err == nil {
			e.Source = &ref
		}
	}
	var raw []string
	if len(r.Targets) > 0 {
		if err := json.Unmarshal(r.Targets, &raw); err != nil {
			logger.Store.LogAttrs(ctx, slog.LevelError, "store.load.corrupt",
				slog.String("backend", "postgres"),
				slog.String("user_id", r.UserID),
				slog.String("err", err.Error()),
			)
		}
	}
	for _, t := range raw {
		if ref, err := routing.ParseRef(t); err == nil {
			e.Targets = append(e.Targets, ref)
		}
	}
	return e
}

func encodeEntry(e routing.Entry) (sql.NullString, []byte, error) {
	var src sql.NullString
	if e.Source != nil {
		src = sql.NullString{String: e.Source.String(), Valid: true}
	}
	targets := make([]string, 0, len(e.Targets))
	for _, t := range e.Targets {
		targets = append(targets, t.String())
	}
	raw, err := json.Marshal(targets)
	if err != nil {
		return sql.NullString{}, nil, fmt.Errorf("store: encode targets: %w", err)
	}
	return src, raw, nil
}

// Load reads all rows into a routing table.
func (s *PostgresStore) Load(ctx context.Context) (routing.Table, error) {
	var rows []routeRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT user_id, source, targets FROM relay_routes`); err != nil {
		return nil, fmt.Errorf("store: load routes: %w", err)
	}
	t := routing.Table{}
	for _, r := range rows {
		t[r.UserID] = r.entry(ctx)
	}
	return t, nil
}

// Save replaces the whole table in one transaction.
func (s *PostgresStore) Save(ctx context.Context, t routing.Table) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM relay_routes`); err != nil {
		return fmt.Errorf("store: clear routes: %w", err)
	}
	for userID, entry := range t {
		src, targets, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relay_routes (user_id, source, targets) VALUES ($1, $2, $3)`,
			userID, src, targets,
		); err != nil {
			return fmt.Errorf("store: insert route %s: %w", userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit save: %w", err)
	}

	logger.Store.LogAttrs(ctx, slog.LevelDebug, "store.save",
		slog.String("status", "ok"),
		slog.String("backend", "postgres"),
		slog.Int("users", len(t)),
	)
	return nil
}

// Update applies fn to one user's row under a row lock.
func (s *PostgresStore) Update(ctx context.Context, userID string, fn UpdateFunc) (routing.Entry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return routing.Entry{}, fmt.Errorf("store: begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var row routeRow
	err = tx.GetContext(ctx, &row,
		`SELECT user_id, source, targets FROM relay_routes WHERE user_id = $1 FOR UPDATE`, userID)
	var current routing.Entry
	switch {
	case err == nil:
		current = row.entry(ctx)
	case errors.Is(err, sql.ErrNoRows):
		// first edit for this user, start from a zero entry
	default:
		return routing.Entry{}, fmt.Errorf("store: lock route %s: %w", userID, err)
	}

	entry := fn(current)
	src, targets, err := encodeEntry(entry)
	if err != nil {
		return routing.Entry{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO relay_routes (user_id, source, targets) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET source = EXCLUDED.source, targets = EXCLUDED.targets`,
		userID, src, targets,
	); err != nil {
		return routing.Entry{}, fmt.Errorf("store: upsert route %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return routing.Entry{}, fmt.Errorf("store: commit update: %w", err)
	}
	return entry, nil
}
