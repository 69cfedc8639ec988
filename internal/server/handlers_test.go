package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/gochat/internal/auth"
	"github.com/Tyrowin/gochat/internal/gateway"
)

const testSecret = "handlers-test-secret"

func newTestHandlers(t *testing.T) (*Handlers, *auth.JWTGate) {
	t.Helper()
	gate := auth.NewJWTGate(auth.Config{SecretKey: testSecret, Issuer: "gochat-test"})
	return NewHandlers(startTestHub(t), gate, quietLogger()), gate
}

func TestHealthHandler(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			HealthHandler(rr, httptest.NewRequest(method, "/health", http.NoBody))

			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %s", ct)
			}

			var body HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Status != "ok" || body.Service != "gochat" {
				t.Errorf("unexpected body: %+v", body)
			}
		})
	}
}

func TestStatsHandler(t *testing.T) {
	h, _ := newTestHandlers(t)
	client := NewClient(nil, h.hub, gateway.Identity{UserID: "u1", Username: "alice"}, "test")
	if err := h.hub.Register(client); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for h.hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	rr := httptest.NewRecorder()
	h.StatsHandler(rr, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))

	var body StatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	want := StatsResponse{Clients: 1, Connections: 1, Users: 1, Rooms: 1}
	if body != want {
		t.Errorf("stats = %+v, want %+v", body, want)
	}
}

func TestTestPageHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	TestPageHandler(rr, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	if ct := rr.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("content type = %s", ct)
	}
	for _, want := range []string{"<!DOCTYPE html>", "message:send", "users:online", "/ws?token="} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("test page missing %q", want)
		}
	}
}

func TestWebSocketHandlerMethodValidation(t *testing.T) {
	h, _ := newTestHandlers(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.WebSocketHandler(rr, httptest.NewRequest(method, "/ws", http.NoBody))

			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestWebSocketHandlerAuthentication(t *testing.T) {
	h, gate := newTestHandlers(t)

	valid, err := gate.Issue(gateway.Identity{UserID: "u1", Username: "alice"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	expired, err := gate.Issue(gateway.Identity{UserID: "u1", Username: "alice"}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{name: "no token", target: "/ws", wantStatus: http.StatusUnauthorized, wantBody: "Authentication required"},
		{name: "garbage token", target: "/ws?token=garbage", wantStatus: http.StatusUnauthorized, wantBody: "Authentication required"},
		{name: "expired token", target: "/ws?token=" + expired, wantStatus: http.StatusUnauthorized, wantBody: "Token expired"},
		// Authenticated but not a WebSocket handshake: the upgrader rejects it.
		{name: "valid token without upgrade", target: "/ws?token=" + valid, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.WebSocketHandler(rr, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSetupRoutes(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := SetupRoutes(h)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{method: http.MethodGet, path: "/stats", wantStatus: http.StatusOK},
		{method: http.MethodGet, path: "/test", wantStatus: http.StatusOK},
		{method: http.MethodPost, path: "/health", wantStatus: http.StatusMethodNotAllowed},
		{method: http.MethodPost, path: "/ws", wantStatus: http.StatusMethodNotAllowed},
		{method: http.MethodGet, path: "/ws", wantStatus: http.StatusUnauthorized},
		{method: http.MethodGet, path: "/missing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestCreateServer(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := SetupRoutes(h)

	srv := CreateServer(":8080", router)

	if srv.Addr != ":8080" {
		t.Errorf("Addr = %s", srv.Addr)
	}
	if srv.Handler != router {
		t.Error("handler not set correctly")
	}
	if srv.ReadTimeout != 15*time.Second || srv.WriteTimeout != 15*time.Second || srv.IdleTimeout != 60*time.Second {
		t.Errorf("unexpected timeouts: read=%v write=%v idle=%v", srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
}
