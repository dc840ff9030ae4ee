package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mold_monitor"
)

// ErrUsernameTaken is returned by Create for an existing operator name.
var ErrUsernameTaken = errors.New("username already exists")

// OperatorSQLite stores operator accounts. Usernames are case-insensitive.
type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ OperatorRepo = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL       = `INSERT INTO operators (username, password_hash) VALUES (?, ?)`
	selectOperatorByNameSQL = `SELECT id, username, password_hash FROM operators WHERE username = ?`
)

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sqlite reports "UNIQUE constraint failed: operators.username"
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts a new operator account and returns its ID.
func (r *OperatorSQLite) Create(username, passwordHash string) (int, error) {
	name := normalizeUsername(username)
	if name == "" {
		return 0, errors.New("username is empty")
	}
	res, err := r.db.Exec(insertOperatorSQL, name, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("operator %q: %w", name, ErrUsernameTaken)
		}
		return 0, fmt.Errorf("insert operator %q: %w", name, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for operator %q: %w", name, err)
	}
	return int(lastID), nil
}

// GetByUsername fetches an operator by name. Returns (nil, nil) if not found.
func (r *OperatorSQLite) GetByUsername(username string) (*mold_monitor.Operator, error) {
	name := normalizeUsername(username)
	var u mold_monitor.Operator
	err := r.db.QueryRow(selectOperatorByNameSQL, name).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select operator %q: %w", name, err)
	}
	return &u, nil
}
