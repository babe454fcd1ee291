package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const minimal = `
[server]
port = 8080

[network]
relay_url = "ws://127.0.0.1:7000/relay"
`

func TestValidateFillsDefaults(t *testing.T) {
	cfg, err := Parse(minimal)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.IdleTimeoutSecs != 120 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLitePath == "" {
		t.Errorf("storage defaults = %+v", cfg.Storage)
	}

	wantNet := NetworkConfig{
		RelayURL:           "ws://127.0.0.1:7000/relay",
		DialTimeoutSecs:    10,
		QueriesPerSecond:   20,
		DataUpdateSecs:     30,
		AtisUpdateSecs:     60,
		ConnectTimeoutSecs: 15,
		LoginMode:          "pilot",
	}
	if diff := cmp.Diff(wantNet, cfg.Network); diff != "" {
		t.Errorf("network defaults (-want +got):\n%s", diff)
	}

	if cfg.Metar != (MetarConfig{CacheSize: 256, StaleAfterMs: 10000, WaitMs: 1000}) {
		t.Errorf("metar defaults = %+v", cfg.Metar)
	}
	if cfg.Voice.AutomaticResolution == nil || !*cfg.Voice.AutomaticResolution {
		t.Error("automatic voice resolution should default to true")
	}
	if cfg.Rendering.SnapshotSecs != 5 || cfg.Rendering.HighlightSecs != 10 {
		t.Errorf("rendering defaults = %+v", cfg.Rendering)
	}
	if cfg.Bookings.URL != "" {
		t.Errorf("disabled bookings feed got url %q", cfg.Bookings.URL)
	}
}

func TestValidateFeeds(t *testing.T) {
	cfg, err := Parse(minimal + `
[bookings]
enabled = true

[datafile]
enabled = true
url = "https://example.net/data.json"
refresh_interval_seconds = 15
`)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Bookings.URL != DefaultBookingsURL || cfg.Bookings.RefreshSecs != 180 {
		t.Errorf("bookings = %+v", cfg.Bookings)
	}
	if cfg.Datafile.URL != "https://example.net/data.json" || cfg.Datafile.RefreshSecs != 15 {
		t.Errorf("datafile = %+v", cfg.Datafile)
	}
}

func TestValidateServers(t *testing.T) {
	cfg, err := Parse(minimal + `
[[network.servers]]
name = "GERMANY"
address = "de.example.net"
user_id = "1234567"
password = "secret"

[[network.servers]]
name = "USA-EAST"
address = "usa-e.example.net"
port = 7000
`)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Network.DefaultServer != "GERMANY" {
		t.Errorf("default server = %q", cfg.Network.DefaultServer)
	}
	s, ok := cfg.Network.ServerByName("GERMANY")
	if !ok || s.Port != 6809 {
		t.Errorf("GERMANY = %+v %v", s, ok)
	}
	if s, _ := cfg.Network.ServerByName("USA-EAST"); s.Port != 7000 {
		t.Errorf("explicit port overwritten: %d", s.Port)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"bad relay scheme", "", "ws or wss"},
		{"bad login mode", "login_mode = \"atc\"", "login_mode"},
		{"unknown default server", "default_server = \"NOPE\"", "not in the server list"},
		{"auto connect without servers", "auto_connect = true", "auto_connect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := "ws://127.0.0.1:7000/relay"
			if tt.name == "bad relay scheme" {
				relay = "http://127.0.0.1:7000/relay"
			}
			cfg, err := Parse("[server]\nport = 8080\n[network]\nrelay_url = \"" + relay + "\"\n" + tt.extra + "\n")
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejectsSectionValues(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"log level", "[logging]\nlevel = \"verbose\"", "log level"},
		{"voice overrides", "[voice]\noverrides = [\"a\"]", "exactly 2"},
		{"com frequency", "[own_aircraft]\ncom1_mhz = 99.5", "com1_mhz"},
		{"rendering", "[rendering]\nmax_aircraft = -1", "max_aircraft"},
		{"storage", "[storage]\ntype = \"postgres\"", "storage type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(minimal + tt.extra + "\n")
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}

	if _, err := LoadWithFallback(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing config")
	}
}
