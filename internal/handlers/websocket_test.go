package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mold_monitor"
	"mold_monitor/internal/service"
)

func TestParseFeedOptions_Interval(t *testing.T) {
	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", 1 * time.Second},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 1 * time.Second},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 1 * time.Second},
		{"interval_invalid_string", "/ws?interval=bogus", 1 * time.Second},
		{"interval_ms_invalid", "/ws?interval_ms=NaN", 1 * time.Second},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"both_present_invalid_interval_ms_used", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			c, _ := gin.CreateTestContext(w)
			c.Request = req
			got := parseFeedOptions(c).interval
			if got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

func TestParseFeedOptions_Types(t *testing.T) {
	cases := []struct {
		u    string
		want []string
	}{
		{"/ws", []string{"boundary", "cycle", "sample", "session"}},
		{"/ws?samples=0", []string{"boundary", "cycle", "session"}},
		{"/ws?types=Cycle,%20boundary", []string{"boundary", "cycle"}},
		{"/ws?types=cycle,sample&samples=0", []string{"cycle"}},
		{"/ws?types=bogus", []string{"boundary", "cycle", "sample", "session"}},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, tc.u, nil)
		opts := parseFeedOptions(c)

		var got []string
		for typ, on := range opts.types {
			if on {
				got = append(got, typ)
			}
		}
		sort.Strings(got)
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Errorf("%s: got %v, want %v", tc.u, got, tc.want)
		}
	}
}

type feedFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// dialFeed serves /ws for s without the auth middleware and dials it with query.
func dialFeed(t *testing.T, s *service.Service, query url.Values) *websocket.Conn {
	t.Helper()
	r := gin.New()
	r.GET("/ws", NewHandler(s, nil).wsConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query.Encode()
	conn, _, err := (&websocket.Dialer{HandshakeTimeout: 2 * time.Second}).Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (feedFrame, error) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var f feedFrame
	err := conn.ReadJSON(&f)
	return f, err
}

func TestWebSocket_StateSnapshots(t *testing.T) {
	mon := &mockMonitoring{state: mold_monitor.SessionState{SessionID: "s1", Running: true, CurrentCycle: 4, CycleOpen: true}}
	conn := dialFeed(t, &service.Service{Monitoring: mon}, url.Values{"interval_ms": {"20"}})

	for i := 0; i < 2; i++ {
		f, err := readFrame(t, conn)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Type != wsState {
			t.Fatalf("frame %d: type %q", i, f.Type)
		}
		var st mold_monitor.SessionState
		if err := json.Unmarshal(f.Data, &st); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if st.SessionID != "s1" || st.CurrentCycle != 4 || !st.CycleOpen {
			t.Fatalf("frame %d: unexpected state %+v", i, st)
		}
	}
}

func TestWebSocket_ClosesWhenStateFails(t *testing.T) {
	conn := dialFeed(t, &service.Service{Monitoring: &mockMonitoring{err: errors.New("boom")}}, nil)
	if f, err := readFrame(t, conn); err == nil {
		t.Fatalf("expected the connection to close, got %+v", f)
	}
}

func TestWebSocket_ForwardsFilteredFeed(t *testing.T) {
	feed := service.NewFeed(16)
	s := &service.Service{Monitoring: &mockMonitoring{}, Feed: feed}
	conn := dialFeed(t, s, url.Values{"interval": {"10s"}, "samples": {"0"}})

	if f, err := readFrame(t, conn); err != nil || f.Type != wsState {
		t.Fatalf("initial state: %+v, %v", f, err)
	}
	if feed.Subscribers() != 1 {
		t.Fatalf("subscribers = %d after the initial state", feed.Subscribers())
	}

	feed.Publish(service.FeedMessage{Type: service.FeedSample, Data: map[string]int{"n": 1}})
	feed.Publish(service.FeedMessage{Type: service.FeedCycle, Data: mold_monitor.CycleSummary{ID: "c9", Number: 9}})

	f, err := readFrame(t, conn)
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if f.Type != service.FeedCycle {
		t.Fatalf("sample should have been dropped, got %+v", f)
	}
	var sum mold_monitor.CycleSummary
	if err := json.Unmarshal(f.Data, &sum); err != nil || sum.ID != "c9" || sum.Number != 9 {
		t.Fatalf("cycle payload %s: %v", f.Data, err)
	}
}
