package faillog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// retention is how long a zero-result search stays queryable before the
// sweep may delete it.
const retention = 30 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS failed_searches (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	user_id         TEXT NOT NULL DEFAULT '',
	query_text      TEXT NOT NULL DEFAULT '',
	origin          TEXT NOT NULL DEFAULT '',
	destination     TEXT NOT NULL DEFAULT '',
	departure_date  TEXT NOT NULL DEFAULT '',
	return_date     TEXT NOT NULL DEFAULT '',
	cabin           TEXT NOT NULL DEFAULT '',
	result_count    INTEGER NOT NULL DEFAULT 0,
	error_class     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	expires_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failed_searches_expires ON failed_searches(expires_at);
CREATE INDEX IF NOT EXISTS idx_failed_searches_created ON failed_searches(created_at);
`

type Entry struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	UserID         string    `db:"user_id" json:"user_id,omitempty"`
	QueryText      string    `db:"query_text" json:"query_text,omitempty"`
	Origin         string    `db:"origin" json:"origin"`
	Destination    string    `db:"destination" json:"destination"`
	DepartureDate  string    `db:"departure_date" json:"departure_date"`
	ReturnDate     string    `db:"return_date" json:"return_date,omitempty"`
	Cabin          string    `db:"cabin" json:"cabin"`
	ResultCount    int       `db:"result_count" json:"result_count"`
	ErrorClass     string    `db:"error_class" json:"error_class,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
}

// Logger is the append-only store of zero-result searches, kept for pattern
// analysis and TTL-deleted by the sweep. Entries are never updated.
type Logger struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Logger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply failed_searches schema: %w", err)
	}
	return &Logger{db: db, now: time.Now}, nil
}

// WithClock pins the clock, for tests.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

func (l *Logger) Close() error {
	return l.db.Close()
}

// Log appends one entry with its expiry fixed at creation + 30 days.
// ResultCount is forced to zero: only empty searches belong here.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ResultCount = 0
	entry.CreatedAt = l.now().UTC()
	entry.ExpiresAt = entry.CreatedAt.Add(retention)

	query := `INSERT INTO failed_searches
		(id, conversation_id, user_id, query_text, origin, destination, departure_date, return_date, cabin, result_count, error_class, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, query,
		entry.ID, entry.ConversationID, entry.UserID, entry.QueryText,
		entry.Origin, entry.Destination, entry.DepartureDate, entry.ReturnDate,
		entry.Cabin, entry.ResultCount, entry.ErrorClass,
		entry.CreatedAt, entry.ExpiresAt)
	return err
}

// Sweep deletes every entry past its expiry and none before it. Safe to run
// repeatedly; a second run deletes nothing new.
func (l *Logger) Sweep(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM failed_searches WHERE expires_at <= ?`, l.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Query filters entries by free text (over query text and airport codes) and
// an optional created_at range, newest first.
func (l *Logger) Query(ctx context.Context, freeText string, from, to *time.Time) ([]Entry, error) {
	query := `SELECT id, conversation_id, user_id, query_text, origin, destination, departure_date, return_date, cabin, result_count, error_class, created_at, expires_at
		FROM failed_searches WHERE 1=1`
	var args []any

	if freeText != "" {
		query += ` AND (query_text LIKE ? OR origin LIKE ? OR destination LIKE ?)`
		pattern := "%" + freeText + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if from != nil {
		query += ` AND created_at >= ?`
		args = append(args, from.UTC())
	}
	if to != nil {
		query += ` AND created_at <= ?`
		args = append(args, to.UTC())
	}
	query += ` ORDER BY created_at DESC`

	var entries []Entry
	if err := sqlscan.Select(ctx, l.db, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}
