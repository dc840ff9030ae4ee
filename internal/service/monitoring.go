package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mold_monitor"
	"mold_monitor/internal/config"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/metrics"
	"mold_monitor/internal/repository"
	"mold_monitor/internal/session"
)

// activeProfile is the part of ProfileService a session start needs.
type activeProfile interface {
	Active(ctx context.Context) (*config.Profile, error)
}

type MonitorDeps struct {
	Base     context.Context
	Profiles activeProfile
	Sources  SourceFactory
	Sessions repository.SessionRepo
	Events   repository.EventRepo
	Cycles   repository.CycleRepo
	Feed     *Feed
	Settings config.SessionConfig
	Metrics  metrics.Recorder
	Log      *logger.Logger
}

// MonitorService owns the one monitoring session that may run at a time and
// answers state queries for it. After a session ends its final state stays
// visible until the next start.
type MonitorService struct {
	base     context.Context
	profiles activeProfile
	sources  SourceFactory
	sessions repository.SessionRepo
	events   repository.EventRepo
	cycles   repository.CycleRepo
	feed     *Feed
	settings config.SessionConfig
	metrics  metrics.Recorder
	log      *logger.Logger

	mu      sync.Mutex
	current *monitorRun
}

type monitorRun struct {
	sess     *session.Session
	info     mold_monitor.SessionInfo
	finished chan struct{} // closed once the end of the session is persisted
}

func NewMonitorService(d MonitorDeps) *MonitorService {
	base := d.Base
	if base == nil {
		base = context.Background()
	}
	feed := d.Feed
	if feed == nil {
		feed = NewFeed(0)
	}
	return &MonitorService{
		base:     base,
		profiles: d.Profiles,
		sources:  d.Sources,
		sessions: d.Sessions,
		events:   d.Events,
		cycles:   d.Cycles,
		feed:     feed,
		settings: d.Settings,
		metrics:  metrics.OrNop(d.Metrics),
		log:      logger.OrNop(d.Log),
	}
}

// Running reports whether a session is acquiring.
func (s *MonitorService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *MonitorService) runningLocked() bool {
	if s.current == nil {
		return false
	}
	select {
	case <-s.current.finished:
		return false
	default:
		return true
	}
}

// Start builds a session from the active profile and launches it. The
// session is bound to the service base context, not to ctx.
func (s *MonitorService) Start(ctx context.Context) (mold_monitor.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return mold_monitor.SessionInfo{}, ErrSessionRunning
	}

	prof, err := s.profiles.Active(ctx)
	if err != nil {
		return mold_monitor.SessionInfo{}, fmt.Errorf("load profile: %w", err)
	}
	reg, err := prof.Registry()
	if err != nil {
		return mold_monitor.SessionInfo{}, err
	}
	descs := reg.Descriptors()

	src, err := s.sources(ctx, prof, descs)
	if err != nil {
		return mold_monitor.SessionInfo{}, fmt.Errorf("open acquisition source: %w", err)
	}

	reset := newResetLine(s.log)
	rec := newRecorder(s.base, s.cycles, s.events, s.feed, s.log)
	sess, err := session.New(reg, src, session.Config{
		Segmenter:   prof.SegmenterConfig(),
		Trigger:     prof.TriggerPolicy(),
		ResetOnEnd:  s.settings.ResetOnEnd,
		QueueSize:   s.settings.QueueSize,
		SampleEvery: prof.Decimation,
		MaxRunTime:  s.settings.MaxRunTime,
	},
		session.WithLogger(s.log),
		session.WithMetrics(s.metrics),
		session.WithResetLine(reset),
		session.WithObserver(rec),
	)
	if err != nil {
		_ = src.Close()
		return mold_monitor.SessionInfo{}, err
	}

	info := mold_monitor.SessionInfo{
		ID:          sess.ID(),
		ProfileName: prof.Name,
		Channels:    descs,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, info); err != nil {
		_ = src.Close()
		return mold_monitor.SessionInfo{}, fmt.Errorf("persist session: %w", err)
	}

	// Observers are first called after Start; SESSION_START is logged before
	// the loop can write any cycle or reset entry.
	rec.sessionID = info.ID
	rec.append(mold_monitor.EventSessionStart, info.StartedAt,
		fmt.Sprintf("Monitoring started with profile %q (%d channels)", prof.Name, len(descs)),
		map[string]any{"profile": prof.Name, "channels": len(descs)})

	if err := sess.Start(s.base); err != nil {
		_ = src.Close()
		s.abandon(ctx, rec, info.ID, err)
		return mold_monitor.SessionInfo{}, err
	}

	run := &monitorRun{sess: sess, info: info, finished: make(chan struct{})}
	s.current = run
	s.feed.Publish(FeedMessage{Type: FeedSession, Data: sess.State()})

	go reset.drain(rec)
	go s.watch(run, rec, reset)
	return info, nil
}

// abandon closes the log and the session header of a session whose loop
// never started.
func (s *MonitorService) abandon(ctx context.Context, rec *recorder, id string, err error) {
	stoppedAt := time.Now().UTC()
	rec.append(mold_monitor.EventError, stoppedAt, fmt.Sprintf("Monitoring failed to start: %v", err), nil)
	rec.append(mold_monitor.EventSessionStop, stoppedAt, "Monitoring stopped before the first sample", nil)
	if ferr := s.sessions.Finish(context.WithoutCancel(ctx), id, stoppedAt, err.Error()); ferr != nil {
		s.log.Errorw("session_finish_persist_failed", "session_id", id, "err", ferr)
	}
}

// watch persists the end of a session once its last notification is out.
func (s *MonitorService) watch(run *monitorRun, rec *recorder, reset *resetLine) {
	defer close(run.finished)

	err := run.sess.Wait()
	rec.flushGlitches()
	reset.close()

	stoppedAt := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
		rec.append(mold_monitor.EventError, stoppedAt, fmt.Sprintf("Monitoring failed: %v", err), nil)
	}
	st := run.sess.State()
	rec.append(mold_monitor.EventSessionStop, stoppedAt,
		fmt.Sprintf("Monitoring stopped after %d samples and %d cycles", st.SamplesProcessed, st.CurrentCycle),
		map[string]any{"samples": st.SamplesProcessed, "cycles": st.CurrentCycle, "completed": st.CyclesCompleted})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.base), persistTimeout)
	defer cancel()
	if ferr := s.sessions.Finish(ctx, run.info.ID, stoppedAt, msg); ferr != nil {
		s.log.Errorw("session_finish_persist_failed", "session_id", run.info.ID, "err", ferr)
	}
	s.feed.Publish(FeedMessage{Type: FeedSession, Data: st})
}

// Stop asks the running session to end and waits until its end is persisted
// or ctx expires.
func (s *MonitorService) Stop(ctx context.Context) (mold_monitor.SessionState, error) {
	s.mu.Lock()
	run := s.current
	running := s.runningLocked()
	s.mu.Unlock()
	if !running {
		return mold_monitor.SessionState{}, ErrNoSession
	}

	run.sess.Stop()
	select {
	case <-run.finished:
		return run.sess.State(), nil
	case <-ctx.Done():
		return run.sess.State(), ctx.Err()
	}
}

// GetState returns the live state, the final state of the last session, or
// an idle snapshot when nothing ran yet.
func (s *MonitorService) GetState(ctx context.Context) (mold_monitor.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return mold_monitor.SessionState{}, err
	}
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run == nil {
		return mold_monitor.SessionState{
			Trigger:   mold_monitor.TriggerState{Level: mold_monitor.TriggerIdle},
			UpdatedAt: time.Now().UTC(),
		}, nil
	}
	return run.sess.State(), nil
}

// Shutdown stops a running session and waits for it, bounded by ctx.
func (s *MonitorService) Shutdown(ctx context.Context) error {
	if _, err := s.Stop(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}
