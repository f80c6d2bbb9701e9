package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("history: not found")

// Entry is one stored session event.
type Entry struct {
	ID     int64     `json:"id"`
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
}

// FromEvent converts a session event to an Entry.
func FromEvent(e session.Event) Entry {
	entry := Entry{
		Time: e.Time.UTC(),
		Kind: string(e.Kind),
		From: e.From.String(),
		To:   e.To.String(),
	}
	if e.Reason != session.ReasonNone {
		entry.Reason = e.Reason.String()
	}
	return entry
}

// Filter selects entries for List.
type Filter struct {
	Kind   string    // optional: state_change or reboot
	Since  time.Time // optional: only entries at or after Since
	Limit  int       // default 50, max 500
	Offset int
}

// Repository stores and reads session history.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	LastReboot(ctx context.Context) (Entry, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// SQLiteRepository stores history in the session_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts entry and sets its ID. A zero Time is set to now.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events (occurred_at, kind, from_state, to_state, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Time.Format(time.RFC3339Nano), entry.Kind, entry.From, entry.To, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("inserting session event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading session event id: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from fixed conditions with ? placeholders
		"SELECT id, occurred_at, kind, from_state, to_state, reason FROM session_events %s ORDER BY id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session events: %w", err)
	}
	return entries, nil
}

// LastReboot returns the most recent watchdog reboot, or ErrNotFound.
func (r *SQLiteRepository) LastReboot(ctx context.Context) (Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, occurred_at, kind, from_state, to_state, reason FROM session_events WHERE kind = ? ORDER BY id DESC LIMIT 1",
		string(session.EventReboot),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Prune deletes all but the newest keep entries and returns how many were
// removed.
func (r *SQLiteRepository) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM session_events WHERE id <= (SELECT id FROM session_events ORDER BY id DESC LIMIT 1 OFFSET ?)",
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning session events: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // sqlite always reports it
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var occurredAt string
	if err := s.Scan(&e.ID, &occurredAt, &e.Kind, &e.From, &e.To, &e.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning session event: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, occurredAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing session event timestamp %q: %w", occurredAt, err)
	}
	e.Time = t
	return e, nil
}
