package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mold_monitor"
)

type CycleSQLite struct {
	db *sql.DB
}

func NewCycleSQLite(db *sql.DB) *CycleSQLite { return &CycleSQLite{db: db} }

const (
	insertCycleSQL = `
		INSERT INTO cycles (id, session_id, number, start_time, end_time, incomplete, end_reason, sample_count, series)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	selectCycleSQL = `
		SELECT id, session_id, number, start_time, end_time, incomplete, end_reason, series
		FROM cycles WHERE id = ?
	`
	listCyclesSQL = `SELECT id, session_id, number, start_time, end_time, incomplete, end_reason, sample_count FROM cycles`
)

// series is the stored form of a cycle: one offset column (ns from start) and
// one value column per channel index.
type series struct {
	Offsets []int64           `json:"t"`
	Values  map[int][]float64 `json:"v"`
}

func encodeSeries(rec mold_monitor.CycleRecord) ([]byte, error) {
	s := series{
		Offsets: make([]int64, len(rec.Samples)),
		Values:  map[int][]float64{},
	}
	var indices []int
	if len(rec.Samples) > 0 {
		for idx := range rec.Samples[0].Values {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			s.Values[idx] = make([]float64, len(rec.Samples))
		}
	}
	for i, smp := range rec.Samples {
		s.Offsets[i] = int64(smp.Timestamp.Sub(rec.StartTime))
		for _, idx := range indices {
			v, ok := smp.Values[idx]
			if !ok {
				return nil, fmt.Errorf("sample %d of cycle %s lacks channel %d", i, rec.ID, idx)
			}
			s.Values[idx][i] = v
		}
	}
	return json.Marshal(s)
}

func decodeSeries(raw []byte, start time.Time) ([]mold_monitor.ConvertedSample, error) {
	var s series
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	out := make([]mold_monitor.ConvertedSample, len(s.Offsets))
	for i, off := range s.Offsets {
		vals := make(map[int]float64, len(s.Values))
		for idx, col := range s.Values {
			if i >= len(col) {
				return nil, fmt.Errorf("channel %d has %d values for %d offsets", idx, len(col), len(s.Offsets))
			}
			vals[idx] = col[i]
		}
		out[i] = mold_monitor.ConvertedSample{Timestamp: start.Add(time.Duration(off)), Values: vals}
	}
	return out, nil
}

// Save stores a finalized cycle record.
func (r *CycleSQLite) Save(ctx context.Context, rec mold_monitor.CycleRecord) error {
	body, err := encodeSeries(rec)
	if err != nil {
		return fmt.Errorf("encode cycle %s: %w", rec.ID, err)
	}
	_, err = r.db.ExecContext(ctx, insertCycleSQL,
		rec.ID,
		rec.SessionID,
		rec.Number,
		rec.StartTime.UTC(),
		rec.EndTime.UTC(),
		rec.Incomplete,
		rec.EndReason,
		len(rec.Samples),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads a cycle with its samples.
func (r *CycleSQLite) Get(ctx context.Context, id string) (mold_monitor.CycleRecord, error) {
	var (
		rec  mold_monitor.CycleRecord
		body string
	)
	err := r.db.QueryRowContext(ctx, selectCycleSQL, id).Scan(
		&rec.ID, &rec.SessionID, &rec.Number, &rec.StartTime, &rec.EndTime, &rec.Incomplete, &rec.EndReason, &body,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mold_monitor.CycleRecord{}, fmt.Errorf("cycle %s: %w", id, ErrNotFound)
		}
		return mold_monitor.CycleRecord{}, fmt.Errorf("select cycle %s: %w", id, err)
	}
	rec.StartTime = rec.StartTime.UTC()
	rec.EndTime = rec.EndTime.UTC()

	samples, err := decodeSeries([]byte(body), rec.StartTime)
	if err != nil {
		return mold_monitor.CycleRecord{}, fmt.Errorf("decode cycle %s: %w", id, err)
	}
	rec.Samples = samples
	return rec, nil
}

// List returns cycle summaries, newest first.
func (r *CycleSQLite) List(ctx context.Context, f CycleFilter) ([]mold_monitor.CycleSummary, error) {
	var (
		conds []string
		args  []any
	)
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "start_time >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_time <= ?")
		args = append(args, f.To.UTC())
	}

	q := listCyclesSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY start_time DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]mold_monitor.CycleSummary, 0, 32)
	for rows.Next() {
		var c mold_monitor.CycleSummary
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Number, &c.StartTime, &c.EndTime, &c.Incomplete, &c.EndReason, &c.SampleCount); err != nil {
			return nil, err
		}
		c.StartTime = c.StartTime.UTC()
		c.EndTime = c.EndTime.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
