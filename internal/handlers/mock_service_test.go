package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mold_monitor"
	"mold_monitor/internal/config"
	"mold_monitor/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockControl struct {
	info        mold_monitor.SessionInfo
	startErr    error
	stopState   mold_monitor.SessionState
	stopErr     error
	startCalled int
	stopCalled  int
}

func (m *mockControl) Start(ctx context.Context) (mold_monitor.SessionInfo, error) {
	m.startCalled++
	return m.info, m.startErr
}
func (m *mockControl) Stop(ctx context.Context) (mold_monitor.SessionState, error) {
	m.stopCalled++
	return m.stopState, m.stopErr
}

type mockMonitoring struct {
	state mold_monitor.SessionState
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (mold_monitor.SessionState, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp  []mold_monitor.SessionEvent
	err   error
	calls int
	last  service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]mold_monitor.SessionEvent, error) {
	m.calls++
	m.last = f
	return m.resp, m.err
}

type mockProfiles struct {
	active  *config.Profile
	err     error
	putErr  error
	lastPut []byte
}

func (m *mockProfiles) Active(ctx context.Context) (*config.Profile, error) {
	return m.active, m.err
}
func (m *mockProfiles) Put(ctx context.Context, raw []byte) (*config.Profile, error) {
	m.lastPut = raw
	if m.putErr != nil {
		return nil, m.putErr
	}
	return m.active, nil
}

type mockCycles struct {
	list       []mold_monitor.CycleSummary
	rec        mold_monitor.CycleRecord
	csv        string
	err        error
	lastFilter service.CycleFilter
	lastID     string
}

func (m *mockCycles) List(ctx context.Context, f service.CycleFilter) ([]mold_monitor.CycleSummary, error) {
	m.lastFilter = f
	return m.list, m.err
}
func (m *mockCycles) Get(ctx context.Context, id string) (mold_monitor.CycleRecord, error) {
	m.lastID = id
	return m.rec, m.err
}
func (m *mockCycles) ExportCSV(ctx context.Context, id string, w io.Writer) error {
	m.lastID = id
	if m.err != nil {
		return m.err
	}
	_, err := fmt.Fprint(w, m.csv)
	return err
}
func (m *mockCycles) ExportSessionCSV(ctx context.Context, sessionID string, w io.Writer) error {
	return m.ExportCSV(ctx, sessionID, w)
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
