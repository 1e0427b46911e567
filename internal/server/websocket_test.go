package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/observation"
	"github.com/zeusync/dodgesim/internal/core/systems/physics"
)

func quietEnv() env.Config {
	cfg := env.DefaultConfig()
	cfg.Emitters = nil
	cfg.Agent.Spawn = physics.V(0, 0)
	return cfg
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(cfg, quietEnv(), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Could not connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req Request) Response {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("Could not send message: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("Could not read message: %v", err)
	}
	if resp.Seq != req.Seq {
		t.Fatalf("Expected seq %d, got %d", req.Seq, resp.Seq)
	}
	return resp
}

func TestWebSocketEpisode(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig())
	conn := dial(t, ts, "")

	resp := roundTrip(t, conn, Request{Type: MessageStep, Seq: 1, Action: []float64{0, 0}})
	if resp.Type != MessageError || resp.Code != CodeNotReset {
		t.Fatalf("Expected not_reset error, got %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Type: MessageReset, Seq: 2})
	if resp.Type != MessageObservation || resp.Result == nil {
		t.Fatalf("Expected observation, got %+v", resp)
	}
	if len(resp.Result.Observation) != observation.Size(3) {
		t.Errorf("Expected %d features, got %d", observation.Size(3), len(resp.Result.Observation))
	}

	resp = roundTrip(t, conn, Request{Type: MessageStep, Seq: 3, Action: []float64{1, 0, 0}, Dt: 0.1})
	if resp.Result == nil || resp.Result.Step != 1 || resp.Result.Done {
		t.Fatalf("Unexpected step result %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Type: MessageCollision, Seq: 4})
	if resp.Type != MessageAck {
		t.Fatalf("Expected ack, got %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Type: MessageStep, Seq: 5, Action: []float64{0, 0}})
	if resp.Result == nil || !resp.Result.Done || resp.Result.Breakdown.Hit != -1 {
		t.Fatalf("Expected terminal hit, got %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Type: MessageStep, Seq: 6, Action: []float64{0, 0}})
	if resp.Code != CodeEpisodeOver {
		t.Fatalf("Expected episode_over, got %+v", resp)
	}

	stats := srv.GetStats()
	if stats.Episodes != 1 || stats.Steps != 2 || stats.ClientCount != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestWebSocketInfo(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	conn := dial(t, ts, "")

	resp := roundTrip(t, conn, Request{Type: MessageInfo, Seq: 9})
	if resp.Info == nil {
		t.Fatalf("Expected info, got %+v", resp)
	}
	if resp.Info.ActionSize != env.ActionSize || resp.Info.ObservationSize != observation.Size(3) {
		t.Errorf("Unexpected info %+v", resp.Info)
	}
}

func TestWebSocketBadRequests(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	conn := dial(t, ts, "")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("Could not send message: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("Could not read message: %v", err)
	}
	if resp.Code != CodeBadRequest {
		t.Errorf("Expected bad_request, got %+v", resp)
	}

	resp = roundTrip(t, conn, Request{Type: "teleport", Seq: 2})
	if resp.Code != CodeUnknownMessage {
		t.Errorf("Expected unknown_message, got %+v", resp)
	}

	roundTrip(t, conn, Request{Type: MessageReset, Seq: 3})
	resp = roundTrip(t, conn, Request{Type: MessageStep, Seq: 4, Action: []float64{1}})
	if resp.Code != CodeInvalidAction {
		t.Errorf("Expected invalid_action, got %+v", resp)
	}
	resp = roundTrip(t, conn, Request{Type: MessageStep, Seq: 5, Action: []float64{0, 0}, Dt: -1})
	if resp.Code != CodeInvalidDuration {
		t.Errorf("Expected invalid_dt, got %+v", resp)
	}
}

func TestWebSocketToken(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Token = "supersecrettoken"
	_, ts := newTestServer(t, cfg)
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// Test without token
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("Expected error when connecting without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	// Test with invalid token
	_, _, err = websocket.DefaultDialer.Dial(u+"?token=invalid", nil)
	if err == nil {
		t.Fatalf("Expected error when connecting with invalid token")
	}

	dial(t, ts, "?token=supersecrettoken")

	header := http.Header{}
	header.Set("Authorization", "Bearer supersecrettoken")
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("Could not connect with bearer token: %v", err)
	}
	_ = conn.Close()
}

func TestMaxClients(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 1
	_, ts := newTestServer(t, cfg)

	conn := dial(t, ts, "")
	roundTrip(t, conn, Request{Type: MessageInfo, Seq: 1})

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("Expected second client to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %v", resp)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	defer resp.Body.Close()

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Could not decode stats: %v", err)
	}
	if stats.ClientCount != 0 {
		t.Errorf("Expected no clients, got %d", stats.ClientCount)
	}
}

func TestHealthCheckDisconnectsIdleClients(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig())
	conn := dial(t, ts, "")
	roundTrip(t, conn, Request{Type: MessageInfo, Seq: 1})

	if n := srv.performHealthChecks(time.Now()); n != 0 {
		t.Fatalf("Expected no idle clients, got %d", n)
	}
	if n := srv.performHealthChecks(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("Expected one idle client, got %d", n)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseGoingAway {
		t.Errorf("Expected going-away close, got %v", err)
	}
}

func TestReconfigureReachesSessions(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig())
	conn := dial(t, ts, "")
	roundTrip(t, conn, Request{Type: MessageReset, Seq: 1})

	next := quietEnv()
	next.Observation.ObserveBulletCount = 1
	if err := srv.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}

	resp := roundTrip(t, conn, Request{Type: MessageReset, Seq: 2})
	if len(resp.Result.Observation) != observation.Size(1) {
		t.Errorf("Expected %d features after reconfigure, got %d", observation.Size(1), len(resp.Result.Observation))
	}

	bad := quietEnv()
	bad.FixedDt = 0
	if err := srv.Reconfigure(bad); !errors.Is(err, env.ErrInvalidConfig) {
		t.Errorf("Expected invalid config, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := NewServer(cfg, quietEnv(), nil, nil)

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := srv.Start(ctx); !errors.Is(err, ErrServerAlreadyRunning) {
		t.Errorf("Expected already running, got %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	_ = resp.Body.Close()

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := srv.Stop(ctx); !errors.Is(err, ErrServerNotRunning) {
		t.Errorf("Expected not running, got %v", err)
	}
	_ = srv.Close()
	if err := srv.Start(ctx); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Expected closed, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultServerConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultServerConfig()
	cfg.MaxClients = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected invalid config, got %v", err)
	}
}
