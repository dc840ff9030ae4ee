package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"mold_monitor"
)

func errSQLNoRows() error { return sql.ErrNoRows }

func TestSessionCreateAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	info := mold_monitor.SessionInfo{
		ID:          "s-1",
		ProfileName: "mold-17",
		StartedAt:   started,
		Channels: []mold_monitor.ChannelDescriptor{
			{Index: 0, Type: mold_monitor.ChannelPressure, Input: 2, Calibration: mold_monitor.CalibrationParams{SetID: "A", FullScale: 2000, MaxCode: 32768}},
		},
	}
	channels := `[{"index":0,"type":"PRESSURE","input":2,"calibration":{"set_id":"A","full_scale":2000,"max_code":32768}}]`

	mock.ExpectExec(regexp.QuoteMeta(insertSessionSQL)).
		WithArgs("s-1", "mold-17", channels, started).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectSessionSQL)).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_name", "channels", "started_at", "stopped_at", "error"}).
			AddRow("s-1", "mold-17", channels, started, nil, nil))

	repo := NewSessionSQLite(db)
	if err := repo.Create(ctx(t), info); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Get(ctx(t), "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ProfileName != "mold-17" || !got.StoppedAt.IsZero() || got.Error != "" {
		t.Fatalf("unexpected session: %+v", got)
	}
	d, ok := got.Descriptor(0)
	if !ok || d.Calibration.SetID != "A" || d.Input != 2 {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestSessionFinish(t *testing.T) {
	db, mock := newMockDB(t)
	stopped := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(finishSessionSQL)).
		WithArgs(stopped, "channel count mismatch", "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(finishSessionSQL)).
		WithArgs(stopped, nil, "s-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSessionSQLite(db)
	if err := repo.Finish(ctx(t), "s-1", stopped, "channel count mismatch"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := repo.Finish(ctx(t), "s-2", stopped, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSessionGet_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectSessionSQL)).WithArgs("x").WillReturnError(sql.ErrNoRows)

	if _, err := NewSessionSQLite(db).Get(ctx(t), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
