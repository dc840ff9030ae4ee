package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mold_monitor"
	"mold_monitor/internal/config"
	"mold_monitor/internal/repository"
)

// In-memory repositories shared by the service tests.

type memEventRepo struct {
	mu     sync.Mutex
	events []mold_monitor.SessionEvent
	err    error
}

func (m *memEventRepo) Append(ctx context.Context, e mold_monitor.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memEventRepo) List(ctx context.Context, q repository.EventQuery) ([]mold_monitor.SessionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mold_monitor.SessionEvent
	for _, e := range m.events {
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if q.SessionID != "" && eventSession(e) != q.SessionID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memEventRepo) ofType(typ string) []mold_monitor.SessionEvent {
	out, _ := m.List(context.Background(), repository.EventQuery{Type: typ})
	return out
}

// eventSession reads the session id the recorder stamps into event metadata.
func eventSession(e mold_monitor.SessionEvent) string {
	m, ok := e.Metadata.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["session_id"].(string)
	return id
}

type memSessionRepo struct {
	mu       sync.Mutex
	infos    map[string]mold_monitor.SessionInfo
	finished map[string]string // id -> error message
	err      error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{infos: map[string]mold_monitor.SessionInfo{}, finished: map[string]string{}}
}

func (m *memSessionRepo) Create(ctx context.Context, s mold_monitor.SessionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.infos[s.ID] = s
	return nil
}

func (m *memSessionRepo) Finish(ctx context.Context, id string, stoppedAt time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[id]
	if !ok {
		return repository.ErrNotFound
	}
	info.StoppedAt = stoppedAt
	info.Error = errMsg
	m.infos[id] = info
	m.finished[id] = errMsg
	return nil
}

func (m *memSessionRepo) Get(ctx context.Context, id string) (mold_monitor.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[id]
	if !ok {
		return mold_monitor.SessionInfo{}, fmt.Errorf("session %s: %w", id, repository.ErrNotFound)
	}
	return info, nil
}

type memCycleRepo struct {
	mu      sync.Mutex
	recs    map[string]mold_monitor.CycleRecord
	saveErr error
	last    repository.CycleFilter
}

func newMemCycleRepo(recs ...mold_monitor.CycleRecord) *memCycleRepo {
	m := &memCycleRepo{recs: map[string]mold_monitor.CycleRecord{}}
	for _, r := range recs {
		m.recs[r.ID] = r
	}
	return m
}

func (m *memCycleRepo) Save(ctx context.Context, rec mold_monitor.CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.recs[rec.ID] = rec
	return nil
}

// List returns newest first, like the SQLite repository.
func (m *memCycleRepo) List(ctx context.Context, f repository.CycleFilter) ([]mold_monitor.CycleSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = f
	var out []mold_monitor.CycleSummary
	for _, r := range m.recs {
		if f.SessionID != "" && r.SessionID != f.SessionID {
			continue
		}
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memCycleRepo) Get(ctx context.Context, id string) (mold_monitor.CycleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return mold_monitor.CycleRecord{}, fmt.Errorf("cycle %s: %w", id, repository.ErrNotFound)
	}
	return r, nil
}

func (m *memCycleRepo) all() []mold_monitor.CycleRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mold_monitor.CycleRecord, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

type memProfileRepo struct {
	stored  repository.StoredProfile
	saveErr error
	saves   int
}

func (m *memProfileRepo) Save(ctx context.Context, p repository.StoredProfile) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.stored = p
	return nil
}

func (m *memProfileRepo) Load(ctx context.Context) (repository.StoredProfile, error) {
	return m.stored, nil
}

type staticProfile struct{ p *config.Profile }

func (s staticProfile) Active(ctx context.Context) (*config.Profile, error) { return s.p, nil }
