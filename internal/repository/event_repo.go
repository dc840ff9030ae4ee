package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mold_monitor"
)

// EventSQLite is the append-only session log.
type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const (
	insertEventSQL = `INSERT INTO session_events (id, occurred_at, type, session_id, message, meta) VALUES (?, ?, ?, ?, ?, ?)`
	selectEventSQL = `SELECT id, occurred_at, type, message, meta FROM session_events`
)

// metaSessionID is the metadata key the recorder stores the session id under;
// it is copied into an indexed column on insert.
const metaSessionID = "session_id"

func eventSessionID(meta any) string {
	m, ok := meta.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m[metaSessionID].(string)
	return id
}

// Append inserts a new event, filling in a missing id or time.
func (r *EventSQLite) Append(ctx context.Context, e mold_monitor.SessionEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta sql.NullString
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode %s metadata: %w", e.Type, err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.UTC(),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		eventSessionID(e.Metadata),
		e.Description,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.Type, err)
	}
	return nil
}

func (q EventQuery) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, q.To.UTC())
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}
	if id := strings.TrimSpace(q.SessionID); id != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, id)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns the matching events, oldest first. Metadata that is not valid
// JSON is returned as the raw string.
func (r *EventSQLite) List(ctx context.Context, q EventQuery) ([]mold_monitor.SessionEvent, error) {
	where, args := q.where()
	rows, err := r.db.QueryContext(ctx, selectEventSQL+where+" ORDER BY occurred_at ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]mold_monitor.SessionEvent, 0, 64)
	for rows.Next() {
		var (
			ev   mold_monitor.SessionEvent
			meta sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		if meta.Valid && meta.String != "" {
			var v any
			if json.Unmarshal([]byte(meta.String), &v) == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = meta.String
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
