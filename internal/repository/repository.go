package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mold_monitor"
)

var ErrNotFound = errors.New("not found")

// OperatorRepo stores the accounts allowed to control sessions.
type OperatorRepo interface {
	Create(username, hash string) (int, error)
	// GetByUsername returns (nil, nil) for an unknown name.
	GetByUsername(username string) (*mold_monitor.Operator, error)
}

// StoredProfile is the active mold profile in its YAML form.
type StoredProfile struct {
	Name      string
	YAML      []byte
	UpdatedAt time.Time
}

type ProfileRepo interface {
	Save(ctx context.Context, p StoredProfile) error
	// Load returns a zero StoredProfile when none was saved yet.
	Load(ctx context.Context) (StoredProfile, error)
}

// EventQuery selects log entries; zero fields do not filter. From and To are inclusive.
type EventQuery struct {
	From      time.Time
	To        time.Time
	Type      string
	SessionID string
}

type EventRepo interface {
	Append(ctx context.Context, e mold_monitor.SessionEvent) error
	List(ctx context.Context, q EventQuery) ([]mold_monitor.SessionEvent, error)
}

type SessionRepo interface {
	Create(ctx context.Context, s mold_monitor.SessionInfo) error
	Finish(ctx context.Context, id string, stoppedAt time.Time, errMsg string) error
	Get(ctx context.Context, id string) (mold_monitor.SessionInfo, error)
}

// CycleFilter narrows List; zero fields do not filter.
type CycleFilter struct {
	SessionID string
	From      time.Time
	To        time.Time
	Limit     int
}

type CycleRepo interface {
	Save(ctx context.Context, rec mold_monitor.CycleRecord) error
	List(ctx context.Context, f CycleFilter) ([]mold_monitor.CycleSummary, error)
	Get(ctx context.Context, id string) (mold_monitor.CycleRecord, error)
}

type Repository struct {
	ProfileRepo ProfileRepo
	EventRepo   EventRepo
	SessionRepo SessionRepo
	CycleRepo   CycleRepo
	Operators   OperatorRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		ProfileRepo: NewProfileSQLite(db),
		EventRepo:   NewEventSQLite(db),
		SessionRepo: NewSessionSQLite(db),
		CycleRepo:   NewCycleSQLite(db),
		Operators:   NewOperatorSQLite(db),
	}
}
