package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mold_monitor/internal/logger"
	"mold_monitor/internal/service"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB, clients only send control frames
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	wsState = "state"
)

// wsEnvelope is one live-feed frame: periodic "state" snapshots and the feed
// messages (sample, boundary, cycle, session) as they happen.
type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	// TODO: restrict to the HMI origins once they are configurable.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedOptions are the query parameters of GET /ws.
type feedOptions struct {
	interval time.Duration
	types    map[string]bool // feed message types to forward
}

func allFeedTypes() map[string]bool {
	return map[string]bool{
		service.FeedSample:   true,
		service.FeedBoundary: true,
		service.FeedCycle:    true,
		service.FeedSession:  true,
	}
}

// parseFeedOptions reads ?interval=2s or ?interval_ms=2000 (bounded) for the
// state snapshots, ?types=cycle,boundary to pick feed messages and
// ?samples=0 to leave out the high-rate sample stream.
func parseFeedOptions(c *gin.Context) feedOptions {
	opts := feedOptions{interval: parseInterval(c), types: allFeedTypes()}

	if list := c.Query("types"); list != "" {
		picked := map[string]bool{}
		for _, t := range strings.Split(list, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			if opts.types[t] {
				picked[t] = true
			}
		}
		if len(picked) > 0 {
			opts.types = picked
		}
	}
	if c.Query("samples") == "0" {
		delete(opts.types, service.FeedSample)
	}
	return opts
}

func parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// wsClient serializes writes to one connection; only the handler goroutine writes.
type wsClient struct {
	conn *websocket.Conn
	log  *logger.Logger
}

func (w *wsClient) send(env wsEnvelope) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(env)
}

func (w *wsClient) ping() error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// readLoop drains incoming frames so pongs and the close handshake are
// processed; done is closed when the peer goes away.
func (w *wsClient) readLoop(done chan<- struct{}) {
	defer close(done)
	w.conn.SetReadLimit(maxMsgSize)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			w.log.Debugw("ws_read_closed", "err", err)
			return
		}
	}
}

// @Summary      Live feed
// @Description  Websocket: state snapshots every interval plus sample, boundary, cycle and session messages. Pass the token as access_token.
// @Tags         session
// @Param        interval      query  string  false  "State snapshot period, e.g. 500ms (max 10s)"
// @Param        types         query  string  false  "Comma-separated feed types: sample,boundary,cycle,session"
// @Param        samples       query  string  false  "0 drops the sample stream"
// @Param        access_token  query  string  false  "Bearer token"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	opts := parseFeedOptions(c)
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	client := &wsClient{conn: conn, log: logger.OrNop(h.log)}
	done := make(chan struct{})
	go client.readLoop(done)

	// a nil feed channel blocks forever in the select below
	var feed <-chan service.FeedMessage
	if h.services.Feed != nil {
		ch, cancel := h.services.Feed.Subscribe()
		defer cancel()
		feed = ch
	}

	if err := h.sendState(ctx, client); err != nil {
		client.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	ticker := time.NewTicker(opts.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := client.ping(); err != nil {
				client.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case msg, ok := <-feed:
			if !ok {
				return
			}
			if !opts.types[msg.Type] {
				continue
			}
			if err := client.send(wsEnvelope{Type: msg.Type, Data: msg.Data}); err != nil {
				client.log.Infow("ws_write_failed", "type", msg.Type, "err", err)
				return
			}
		case <-ticker.C:
			if err := h.sendState(ctx, client); err != nil {
				client.log.Infow("ws_write_failed", "type", wsState, "err", err)
				return
			}
		}
	}
}

// sendState writes the current session snapshot.
func (h *Handler) sendState(ctx context.Context, client *wsClient) error {
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		client.log.Errorw("ws_get_state_failed", "err", err)
		return err
	}
	return client.send(wsEnvelope{Type: wsState, Data: st})
}
