package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a-essam23/go-signal/pkg/config"
	"github.com/spf13/pflag"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(newTestLogger(), "config", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":5000" {
		t.Errorf("Expected default address :5000, got %q", cfg.Server.Address)
	}
	if cfg.Transport.PingInterval != 25*time.Second || cfg.Transport.PongTimeout != 10*time.Second {
		t.Errorf("Unexpected keepalive defaults %+v", cfg.Transport)
	}
	if cfg.Relay.DefaultUsername != "Anonymous" {
		t.Errorf("Expected placeholder username, got %q", cfg.Relay.DefaultUsername)
	}
	servers, err := cfg.ICE.ICEServers()
	if err != nil {
		t.Fatalf("ICEServers failed: %v", err)
	}
	if len(servers) != 2 || servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("Unexpected default ICE servers %+v", servers)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":7000"
  connectionLimit:
    maxPerIP: 3
    mode: cycle
relay:
  uniqueUsernames: true
  rateLimit: 20/s
log:
  level: debug
`)
	t.Setenv("GOSIGNAL_RELAY_DEFAULTUSERNAME", "guest")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("log-level", "", "")
	if err := flags.Parse([]string{"--log-level=warn"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.Load(newTestLogger(), path, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Errorf("Expected address from file, got %q", cfg.Server.Address)
	}
	if cfg.Server.ConnectionLimit.MaxPerIP != 3 || cfg.Server.ConnectionLimit.Mode != "cycle" {
		t.Errorf("Unexpected connection limit %+v", cfg.Server.ConnectionLimit)
	}
	if !cfg.Relay.UniqueUsernames || cfg.Relay.RateLimit != "20/s" {
		t.Errorf("Unexpected relay config %+v", cfg.Relay)
	}
	if cfg.Relay.DefaultUsername != "guest" {
		t.Errorf("Expected env override, got %q", cfg.Relay.DefaultUsername)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected flag override, got %q", cfg.Log.Level)
	}
}

func TestLoadICEServersFromEnvJSON(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GOSIGNAL_ICE_SERVERS_JSON", `[{"urls":"turn:turn.example.com:3478","username":"u","credential":"p"}]`)

	cfg, err := config.Load(newTestLogger(), "config", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	servers, err := cfg.ICE.ICEServers()
	if err != nil {
		t.Fatalf("ICEServers failed: %v", err)
	}
	if len(servers) != 1 || servers[0].URLs[0] != "turn:turn.example.com:3478" || servers[0].Username != "u" {
		t.Errorf("Expected TURN server from env, got %+v", servers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"limit mode": "server:\n  connectionLimit:\n    mode: drop\n",
		"ping":       "transport:\n  pingInterval: -1s\n",
		"pong":       "transport:\n  pingInterval: 5s\n  pongTimeout: 0s\n",
		"rate":       "relay:\n  rateLimit: fast\n",
		"ice scheme": "ice:\n  servers:\n    - urls: [\"http://example.com\"]\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(newTestLogger(), writeConfig(t, body), nil); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    config.Rate
		wantErr bool
	}{
		{"", config.Rate{}, false},
		{"10/s", config.Rate{Limit: 10, Window: time.Second}, false},
		{"5/M", config.Rate{Limit: 5, Window: time.Minute}, false},
		{"1/h", config.Rate{Limit: 1, Window: time.Hour}, false},
		{"0/s", config.Rate{}, true},
		{"10/d", config.Rate{}, true},
		{"ten/s", config.Rate{}, true},
		{"10", config.Rate{}, true},
	}
	for _, tt := range tests {
		got, err := config.ParseRate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRate(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if !(config.Rate{}).Unlimited() {
		t.Error("zero Rate should be unlimited")
	}
}
