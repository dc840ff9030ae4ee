package service

import (
	"context"
	"errors"
	"io"

	"mold_monitor"
	"mold_monitor/internal/config"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/metrics"
	"mold_monitor/internal/repository"
)

var (
	ErrSessionRunning = errors.New("a monitoring session is already running")
	ErrNoSession      = errors.New("no monitoring session is running")
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control starts and stops the monitoring session.
type Control interface {
	Start(ctx context.Context) (mold_monitor.SessionInfo, error)
	Stop(ctx context.Context) (mold_monitor.SessionState, error)
}

// Monitoring exposes the live snapshot of the current (or last) session.
type Monitoring interface {
	GetState(ctx context.Context) (mold_monitor.SessionState, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]mold_monitor.SessionEvent, error)
}

// Profiles reads and replaces the active mold profile.
type Profiles interface {
	Active(ctx context.Context) (*config.Profile, error)
	Put(ctx context.Context, raw []byte) (*config.Profile, error)
}

// Cycles gives access to recorded cycles and their CSV export.
type Cycles interface {
	List(ctx context.Context, f CycleFilter) ([]mold_monitor.CycleSummary, error)
	Get(ctx context.Context, id string) (mold_monitor.CycleRecord, error)
	ExportCSV(ctx context.Context, id string, w io.Writer) error
	ExportSessionCSV(ctx context.Context, sessionID string, w io.Writer) error
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Monitoring
	EventLog
	Profiles
	Cycles
	Authorization

	Feed *Feed

	monitor *MonitorService
}

// Shutdown stops the running session, if any, and waits until its last cycle
// and log entries are persisted or ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.monitor == nil {
		return nil
	}
	return s.monitor.Shutdown(ctx)
}

// Deps are the non-repository collaborators of the services.
type Deps struct {
	// Base outlives HTTP requests; sessions are bound to it.
	Base     context.Context
	Profile  *config.Profile // used until a profile is stored
	Sources  SourceFactory
	Session  config.SessionConfig
	Auth     config.AuthConfig
	Metrics  metrics.Recorder
	Log      *logger.Logger
	FeedSize int
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	log := logger.OrNop(deps.Log)
	feed := NewFeed(deps.FeedSize)

	profiles := NewProfileService(repos.ProfileRepo, deps.Profile, log.Named("profile"))
	mon := NewMonitorService(MonitorDeps{
		Base:     deps.Base,
		Profiles: profiles,
		Sources:  deps.Sources,
		Sessions: repos.SessionRepo,
		Events:   repos.EventRepo,
		Cycles:   repos.CycleRepo,
		Feed:     feed,
		Settings: deps.Session,
		Metrics:  deps.Metrics,
		Log:      log.Named("monitor"),
	})
	profiles.busy = mon.Running

	return &Service{
		Control:       mon,
		Monitoring:    mon,
		EventLog:      NewEventLogService(repos.EventRepo),
		Profiles:      profiles,
		Cycles:        NewCycleService(repos.CycleRepo, repos.SessionRepo),
		Authorization: NewAuthService(repos.Operators, deps.Auth),
		Feed:          feed,
		monitor:       mon,
	}
}
