// Package journal keeps a local record of every shadow update handed to the
// broker and the acknowledgement it eventually received.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/shadowsync/internal/cloud"
	"github.com/nerrad567/shadowsync/internal/shadow"
)

// ErrEntryNotFound is returned by Resolve for a token that was never recorded.
var ErrEntryNotFound = errors.New("journal: entry not found")

// StatusPending is the listed status of entries with no outcome yet.
const StatusPending = "pending"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Field is one reported value as stored in the journal.
type Field struct {
	Name  string `json:"field"`
	Value uint32 `json:"value"`
}

// Entry is one published update.
type Entry struct {
	ID     string    `json:"id"`
	Token  string    `json:"token"`
	Fields []Field   `json:"fields"`
	SentAt time.Time `json:"sent_at"`

	// Status is accepted, rejected, timeout or pending.
	Status     string        `json:"status"`
	Latency    time.Duration `json:"latency,omitempty"`
	Version    int64         `json:"version,omitempty"`
	Code       int           `json:"code,omitempty"`
	Message    string        `json:"message,omitempty"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

// Filter controls which entries List returns.
type Filter struct {
	Status string // optional: accepted, rejected, timeout or pending
	Limit  int    // default 50, max 500
	Offset int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// SQLiteJournal stores entries in the publish_journal table.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal creates a journal over db.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db, now: time.Now}
}

// Record inserts a pending entry for the update sent with token.
func (j *SQLiteJournal) Record(ctx context.Context, token string, update shadow.PendingUpdate, sentAt time.Time) error {
	fields := make([]Field, len(update))
	for i, e := range update {
		fields[i] = Field{Name: string(e.Field), Value: e.Value}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshalling journal fields: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO publish_journal (id, token, fields, sent_at) VALUES (?, ?, ?, ?)`,
		"pub-"+uuid.NewString()[:8], token, string(fieldsJSON),
		sentAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Resolve stores the outcome of ack on the entry recorded with ack.Token.
func (j *SQLiteJournal) Resolve(ctx context.Context, ack cloud.Ack) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE publish_journal
		 SET status = ?, latency_ms = ?, version = ?, code = ?, message = ?, resolved_at = ?
		 WHERE token = ?`,
		string(ack.Status), ack.Latency.Milliseconds(),
		nullableInt(ack.Version), nullableInt(int64(ack.Code)), nullableString(ack.Message),
		j.now().UTC().Format(timeLayout),
		ack.Token,
	)
	if err != nil {
		return fmt.Errorf("updating journal entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating journal entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, ack.Token)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

// List returns entries matching filter, most recent first.
func (j *SQLiteJournal) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		where string
		args  []any
	)
	switch filter.Status {
	case "":
	case StatusPending:
		where = "WHERE status IS NULL"
	default:
		where = "WHERE status = ?"
		args = append(args, filter.Status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM publish_journal " + where //nolint:gosec // WHERE is one of two constant clauses
	if err := j.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := `SELECT id, token, fields, sent_at, status, latency_ms, version, code, message, resolved_at
		FROM publish_journal ` + where + ` ORDER BY sent_at DESC LIMIT ? OFFSET ?` //nolint:gosec // as above
	rows, err := j.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
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
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                  Entry
		fieldsJSON, sentAt string
		status, message    sql.NullString
		resolvedAt         sql.NullString
		latency, ver, code sql.NullInt64
	)
	if err := rows.Scan(&e.ID, &e.Token, &fieldsJSON, &sentAt,
		&status, &latency, &ver, &code, &message, &resolvedAt); err != nil {
		return Entry{}, fmt.Errorf("scanning journal entry: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
		return Entry{}, fmt.Errorf("decoding journal fields for %s: %w", e.ID, err)
	}

	t, err := time.Parse(timeLayout, sentAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing sent_at %q: %w", sentAt, err)
	}
	e.SentAt = t

	e.Status = StatusPending
	if status.Valid {
		e.Status = status.String
	}
	e.Latency = time.Duration(latency.Int64) * time.Millisecond
	e.Version = ver.Int64
	e.Code = int(code.Int64)
	e.Message = message.String

	if resolvedAt.Valid {
		t, err := time.Parse(timeLayout, resolvedAt.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing resolved_at %q: %w", resolvedAt.String, err)
		}
		e.ResolvedAt = &t
	}
	return e, nil
}

// FieldsString renders e's fields as "pb=3 led=1".
func (e Entry) FieldsString() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s=%d", f.Name, f.Value)
	}
	return strings.Join(parts, " ")
}
