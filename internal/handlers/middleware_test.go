package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mold_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// router wiring only the middleware and a protected endpoint echoing the operator
func newMiddlewareOnlyRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/secure", h.operatorMiddleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "operatorId": operatorID(c)})
	})
	return r
}

func TestOperatorMiddleware_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		header   string
		parseErr error
		errMsg   string
	}{
		{name: "missing header", url: "/secure", errMsg: "missing Authorization header"},
		{name: "invalid scheme", url: "/secure", header: "Token abc", errMsg: "invalid Authorization header format"},
		{name: "bearer without token", url: "/secure", header: "Bearer", errMsg: "invalid Authorization header format"},
		{name: "bearer with blank token", url: "/secure", header: "Bearer   ", errMsg: "invalid Authorization header format"},
		{
			name: "expired token", url: "/secure", header: "Bearer expired",
			parseErr: errors.New("expired"), errMsg: "invalid or expired token",
		},
		{
			// the query token is honoured on websocket handshakes only
			name: "query token on plain request", url: "/secure?access_token=tok",
			errMsg: "missing Authorization header",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseErr: tc.parseErr}
			r := newMiddlewareOnlyRouter(&service.Service{Authorization: auth})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status: got %d, want 401 (body=%s)", w.Code, w.Body.String())
			}
			var out struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Error != tc.errMsg {
				t.Fatalf("error message: got %q, want %q", out.Error, tc.errMsg)
			}
		})
	}
}

func TestOperatorMiddleware_SetsOperatorID(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		header    string
		upgrade   bool
		wantToken string
	}{
		{name: "bearer header", url: "/secure", header: "Bearer good-token", wantToken: "good-token"},
		{name: "lower-case scheme", url: "/secure", header: "bearer good-token", wantToken: "good-token"},
		{name: "websocket query token", url: "/secure?access_token=ws-token", upgrade: true, wantToken: "ws-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseID: 123}
			r := newMiddlewareOnlyRouter(&service.Service{Authorization: auth})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200; body=%s", w.Code, w.Body.String())
			}
			var resp struct {
				OK         bool `json:"ok"`
				OperatorID int  `json:"operatorId"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !resp.OK || resp.OperatorID != 123 {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if auth.lastParseToken != tc.wantToken {
				t.Fatalf("ParseToken got %q, want %q", auth.lastParseToken, tc.wantToken)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}})
	for _, path := range []string{"/api/v1/session/state", "/api/v1/cycles", "/api/v1/profile", "/ws"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
		}
	}
}
