package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/a-essam23/go-signal/internal/server"
	"github.com/a-essam23/go-signal/pkg/config"
	"github.com/coder/websocket"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ShutdownTimeout: time.Second,
			ConnectionLimit: config.ConnectionLimitConfig{Mode: "reject"},
		},
		Transport: config.TransportConfig{
			PingInterval:   time.Second,
			PongTimeout:    time.Second,
			WriteTimeout:   time.Second,
			SendBufferSize: 16,
			MaxMessageSize: 64 * 1024,
		},
		ICE: config.ICEConfig{
			Servers: []config.ICEServerConfig{{URLs: []string{"stun:stun.example.com:3478"}}},
		},
	}
}

func startServer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	app, err := server.NewApp(newTestLogger(), context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
	id   string
}

// dial connects to /ws and consumes the connected ack.
func dial(t *testing.T, baseURL string) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	c := &client{t: t, ctx: ctx, conn: conn}
	ack := c.read(t)
	if ack.Event != "connected" {
		t.Fatalf("Expected connected ack, got %q", ack.Event)
	}
	var payload struct {
		UserID     string           `json:"user_id"`
		ICEServers []map[string]any `json:"ice_servers"`
	}
	json.Unmarshal(ack.Payload, &payload)
	if payload.UserID == "" || len(payload.ICEServers) != 1 {
		t.Fatalf("Unexpected connected payload %s", ack.Payload)
	}
	c.id = payload.UserID
	return c
}

func (c *client) send(event string, payload any) {
	c.t.Helper()
	data, _ := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) read(t *testing.T) frame {
	t.Helper()
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func (c *client) expect(event string) json.RawMessage {
	c.t.Helper()
	f := c.read(c.t)
	if f.Event != event {
		c.t.Fatalf("Expected %q, got %q (%s)", event, f.Event, f.Payload)
	}
	return f.Payload
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestNewAppRejectsInvalidICEConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ICE.Servers = []config.ICEServerConfig{{URLs: []string{"turn:turn.example.com"}}}
	if _, err := server.NewApp(newTestLogger(), context.Background(), cfg); err == nil {
		t.Fatal("Expected TURN server without credentials to be rejected")
	}
}

func TestHTTPEndpoints(t *testing.T) {
	base := startServer(t, testConfig())

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	var ice struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"ice_servers"`
	}
	getJSON(t, base+"/ice-servers", &ice)
	if len(ice.ICEServers) != 1 || ice.ICEServers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Errorf("Unexpected ice servers %+v", ice)
	}

	a := dial(t, base)
	a.send("join-room", map[string]any{"room_id": "R1", "username": "alice"})
	a.expect("joined-room")

	var stats map[string]int
	getJSON(t, base+"/stats", &stats)
	if stats["connections"] != 1 || stats["rooms"] != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestSignalingOverWebSocket(t *testing.T) {
	base := startServer(t, testConfig())
	a, b := dial(t, base), dial(t, base)

	a.send("join-room", map[string]any{"room_id": "R1", "username": "alice"})
	a.expect("joined-room")
	b.send("join-room", map[string]any{"room_id": "R1", "username": "bob"})

	var joined struct {
		OtherUsers []string `json:"other_users"`
	}
	json.Unmarshal(b.expect("joined-room"), &joined)
	if len(joined.OtherUsers) != 1 || joined.OtherUsers[0] != a.id {
		t.Errorf("Expected alice in other_users, got %v", joined.OtherUsers)
	}
	a.expect("user-joined")

	a.send("offer", map[string]any{"target_user": b.id, "offer": map[string]any{"type": "offer", "sdp": "v=0"}})
	var offer struct {
		Offer    map[string]string `json:"offer"`
		FromUser string            `json:"from_user"`
	}
	json.Unmarshal(b.expect("offer"), &offer)
	if offer.FromUser != a.id || offer.Offer["sdp"] != "v=0" {
		t.Errorf("Unexpected forwarded offer %+v", offer)
	}

	// closing b's socket announces the departure to a
	b.conn.Close(websocket.StatusNormalClosure, "")
	var left struct {
		UserID string `json:"user_id"`
	}
	json.Unmarshal(a.expect("user-left"), &left)
	if left.UserID != b.id {
		t.Errorf("Expected user-left for %s, got %s", b.id, left.UserID)
	}
}

func TestConnectionLimitReject(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectionLimit = config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "reject"}
	base := startServer(t, cfg)

	dial(t, base)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("Expected second connection from the same IP to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %+v", resp)
	}
}

func TestConnectionLimitCycle(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectionLimit = config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "cycle"}
	base := startServer(t, cfg)

	first := dial(t, base)
	// keep reading so the close handshake of the evicted socket can complete
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := first.conn.Read(first.ctx)
		firstErr <- err
	}()

	second := dial(t, base)

	select {
	case err := <-firstErr:
		if err == nil {
			t.Error("Expected the oldest connection to be closed")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for the oldest connection to close")
	}

	var stats map[string]int
	getJSON(t, base+"/stats", &stats)
	if stats["connections"] != 1 {
		t.Errorf("Expected one live connection after cycling, got %d", stats["connections"])
	}
	second.send("get-online-users", map[string]any{"room_id": "none"})
	second.expect("online-users")
}

func TestIdleClientKeepsPresence(t *testing.T) {
	cfg := testConfig()
	cfg.Transport.PingInterval = 100 * time.Millisecond
	cfg.Transport.PongTimeout = 300 * time.Millisecond
	base := startServer(t, cfg)

	a := dial(t, base)
	a.send("join-room", map[string]any{"room_id": "R1", "username": "alice"})
	a.expect("joined-room")

	// stay silent well past several ping rounds while still answering pings
	a.conn.CloseRead(a.ctx)
	time.Sleep(800 * time.Millisecond)

	var stats map[string]int
	getJSON(t, base+"/stats", &stats)
	if stats["connections"] != 1 || stats["rooms"] != 1 {
		t.Errorf("Idle client lost its presence: %+v", stats)
	}
}

// repeated cycling from one address must never leave stale records behind.
func TestConnectionCyclingLeavesNoGhosts(t *testing.T) {
	cfg := testConfig()
	cfg.Server.ConnectionLimit = config.ConnectionLimitConfig{MaxPerIP: 1, Mode: "cycle"}
	base := startServer(t, cfg)

	var last *client
	for i := 0; i < 10; i++ {
		if last != nil {
			last.conn.CloseRead(last.ctx)
		}
		last = dial(t, base)
	}

	deadline := time.Now().Add(3 * time.Second)
	var stats map[string]int
	for {
		getJSON(t, base+"/stats", &stats)
		if stats["connections"] == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if stats["connections"] != 1 {
		t.Fatalf("Expected exactly one live connection, got %+v", stats)
	}

	last.send("get-online-users", map[string]any{"room_id": "none"})
	last.expect("online-users")
}
