package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"mold_monitor"
	"mold_monitor/internal/service"
)

func newLogsRouter(logs *mockEventLog) http.Handler {
	return newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs})
}

func TestLogsHandler_ReturnsEvents(t *testing.T) {
	at := time.Date(2025, time.May, 6, 7, 0, 0, 0, time.UTC)
	logs := &mockEventLog{resp: []mold_monitor.SessionEvent{
		{EventID: "e1", OccurredAt: at, Type: mold_monitor.EventCycleStart, Description: "cycle 1 started"},
		{EventID: "e2", OccurredAt: at.Add(8 * time.Second), Type: mold_monitor.EventCycleEnd, Description: "cycle 1 ended"},
	}}

	target := "/api/v1/logs/?from=" + at.Format(time.RFC3339) + "&to=" + at.Add(time.Minute).Format(time.RFC3339) +
		"&type=cycle_end&session_id=s-42"
	w := doRequest(newLogsRouter(logs), http.MethodGet, target, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var out struct {
		Count  int                         `json:"count"`
		Events []mold_monitor.SessionEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || len(out.Events) != 2 || out.Events[1].EventID != "e2" {
		t.Fatalf("unexpected body %+v", out)
	}

	want := service.LogFilter{From: at, To: at.Add(time.Minute), Type: mold_monitor.EventCycleEnd, SessionID: "s-42"}
	if !logs.last.From.Equal(want.From) || !logs.last.To.Equal(want.To) || logs.last.Type != want.Type || logs.last.SessionID != want.SessionID {
		t.Fatalf("filter = %+v, want %+v", logs.last, want)
	}
}

func TestLogsHandler_DateOnlyToCoversTheDay(t *testing.T) {
	logs := &mockEventLog{}
	w := doRequest(newLogsRouter(logs), http.MethodGet, "/api/v1/logs/?from=2025-08-01&to=2025-08-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if want := time.Date(2025, time.August, 31, 23, 59, 59, 999999999, time.UTC); !logs.last.To.Equal(want) {
		t.Fatalf("to = %v, want %v", logs.last.To, want)
	}
	if want := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC); !logs.last.From.Equal(want) {
		t.Fatalf("from = %v, want %v", logs.last.From, want)
	}
}

func TestLogsHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantCode   int
		wantCalled bool
	}{
		{name: "bad from", target: "/api/v1/logs/?from=yesterday", wantCode: http.StatusBadRequest},
		{name: "inverted range", target: "/api/v1/logs/?from=2025-09-01&to=2025-08-01", wantCode: http.StatusBadRequest},
		{
			name: "unknown type", target: "/api/v1/logs/?type=heater_on",
			err: fmt.Errorf("%w: unknown event type", service.ErrInvalidFilter), wantCode: http.StatusBadRequest, wantCalled: true,
		},
		{
			name: "store failure", target: "/api/v1/logs/",
			err: errors.New("database is locked"), wantCode: http.StatusInternalServerError, wantCalled: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &mockEventLog{err: tt.err}
			w := doRequest(newLogsRouter(logs), http.MethodGet, tt.target, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status=%d want %d body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			if called := logs.calls > 0; called != tt.wantCalled {
				t.Fatalf("service called=%v, want %v", called, tt.wantCalled)
			}
		})
	}
}
