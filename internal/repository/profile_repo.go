package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type ProfileSQLite struct {
	db *sql.DB
}

func NewProfileSQLite(db *sql.DB) *ProfileSQLite {
	return &ProfileSQLite{db: db}
}

const (
	channelConfigRowID = 1

	upsertProfileSQL = `
		INSERT INTO channel_config (id, name, profile, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			profile=excluded.profile,
			updated_at=excluded.updated_at
	`

	selectProfileSQL = `
		SELECT name, profile, updated_at
		FROM channel_config WHERE id=?
	`
)

// Save replaces the active profile (row id always 1).
func (r *ProfileSQLite) Save(ctx context.Context, p StoredProfile) error {
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertProfileSQL, channelConfigRowID, p.Name, string(p.YAML), ts)
	return err
}

// Load fetches the active profile.
func (r *ProfileSQLite) Load(ctx context.Context) (StoredProfile, error) {
	var (
		p    StoredProfile
		body string
	)
	err := r.db.QueryRowContext(ctx, selectProfileSQL, channelConfigRowID).Scan(&p.Name, &body, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredProfile{}, nil // nothing saved yet
		}
		return StoredProfile{}, err
	}
	p.YAML = []byte(body)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
