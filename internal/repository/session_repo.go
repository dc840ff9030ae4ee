package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mold_monitor"
)

type SessionSQLite struct {
	db *sql.DB
}

func NewSessionSQLite(db *sql.DB) *SessionSQLite { return &SessionSQLite{db: db} }

const (
	insertSessionSQL = `INSERT INTO sessions (id, profile_name, channels, started_at) VALUES (?, ?, ?, ?)`
	finishSessionSQL = `UPDATE sessions SET stopped_at = ?, error = ? WHERE id = ?`
	selectSessionSQL = `SELECT id, profile_name, channels, started_at, stopped_at, error FROM sessions WHERE id = ?`
)

func (r *SessionSQLite) Create(ctx context.Context, s mold_monitor.SessionInfo) error {
	channels, err := json.Marshal(s.Channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, insertSessionSQL, s.ID, s.ProfileName, string(channels), s.StartedAt.UTC()); err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

func (r *SessionSQLite) Finish(ctx context.Context, id string, stoppedAt time.Time, errMsg string) error {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}
	res, err := r.db.ExecContext(ctx, finishSessionSQL, stoppedAt.UTC(), errPtr, id)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SessionSQLite) Get(ctx context.Context, id string) (mold_monitor.SessionInfo, error) {
	var (
		s        mold_monitor.SessionInfo
		channels string
		stopped  sql.NullTime
		errMsg   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectSessionSQL, id).
		Scan(&s.ID, &s.ProfileName, &channels, &s.StartedAt, &stopped, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mold_monitor.SessionInfo{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return mold_monitor.SessionInfo{}, fmt.Errorf("select session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(channels), &s.Channels); err != nil {
		return mold_monitor.SessionInfo{}, fmt.Errorf("decode channels of session %s: %w", id, err)
	}
	s.StartedAt = s.StartedAt.UTC()
	if stopped.Valid {
		s.StoppedAt = stopped.Time.UTC()
	}
	s.Error = errMsg.String
	return s, nil
}
