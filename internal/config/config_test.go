package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_ParsesAndDefaults(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("DATA_DIR", "./_testdata")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("PING_TIMEOUT_MS", "1234")
	t.Setenv("POLL_INTERVAL_MS", "500")
	t.Setenv("DNS_TIMEOUT_MS", "2500")
	t.Setenv("ALERT_COOLDOWN_MS", "30000")
	t.Setenv("LATENCY_WARN_MS", "300")
	t.Setenv("PUBLIC_API_KEYS", "pub_a, pub_b")
	t.Setenv("ADMIN_API_KEYS", "adm_x")
	t.Setenv("PUBLIC_RPM", "111")
	t.Setenv("PUBLIC_BURST", "22")
	t.Setenv("ADMIN_RPM", "33")
	t.Setenv("ADMIN_BURST", "44")
	t.Setenv("ALERT_WEBHOOK_URL", "https://hooks.example.com/x")

	cfg := FromEnv()

	if cfg.Addr != ":9090" || cfg.DataDir != "./_testdata" || cfg.LogDir != "./_testlogs" {
		t.Fatalf("paths wrong: %+v", cfg)
	}
	if cfg.PingTimeout != 1234*time.Millisecond || cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("durations wrong: %+v", cfg)
	}
	if cfg.DNSTimeout != 2500*time.Millisecond || cfg.AlertCooldown != 30*time.Second {
		t.Fatalf("durations wrong: %+v", cfg)
	}
	if cfg.LatencyWarnMS != 300 {
		t.Fatalf("latency threshold wrong: %v", cfg.LatencyWarnMS)
	}
	if len(cfg.PublicAPIKeys) != 2 || cfg.PublicAPIKeys[1] != "pub_b" {
		t.Fatalf("public keys wrong: %+v", cfg.PublicAPIKeys)
	}
	if len(cfg.AdminAPIKeys) != 1 || cfg.AdminAPIKeys[0] != "adm_x" {
		t.Fatalf("admin keys wrong: %+v", cfg.AdminAPIKeys)
	}
	if cfg.PublicRPM != 111 || cfg.AdminBurst != 44 {
		t.Fatalf("limits wrong: %+v", cfg)
	}
	if cfg.AlertWebhookURL != "https://hooks.example.com/x" {
		t.Fatalf("webhook wrong: %q", cfg.AlertWebhookURL)
	}

	// ensure defaults don’t crash if missing env
	os.Unsetenv("ADDR")
	_ = FromEnv()
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("PING_TIMEOUT_MS", "not-a-number")
	t.Setenv("POLL_INTERVAL_MS", "-5")
	t.Setenv("PUBLIC_RPM", "0")

	cfg := FromEnv()
	if cfg.PingTimeout != 10*time.Second {
		t.Fatalf("bad timeout should fall back: %v", cfg.PingTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("negative interval should fall back: %v", cfg.PollInterval)
	}
	if cfg.PublicRPM != 600 {
		t.Fatalf("zero rpm should fall back: %v", cfg.PublicRPM)
	}
}

func TestLoadSeedHosts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.yaml")
	yaml := `
- label: Router
  address: 192.168.1.1
- address: 10.0.0.1
- label: no-address
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	hosts, err := LoadSeedHosts(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(hosts) != 2 {
		t.Fatalf("want 2 hosts, got %+v", hosts)
	}
	if hosts[0].Label != "Router" || hosts[0].Address != "192.168.1.1" {
		t.Fatalf("first host: %+v", hosts[0])
	}
	// label falls back to the address
	if hosts[1].Label != "10.0.0.1" {
		t.Fatalf("label fallback: %+v", hosts[1])
	}
}

func TestLoadSeedHosts_MissingFileIsFine(t *testing.T) {
	hosts, err := LoadSeedHosts(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || hosts != nil {
		t.Fatalf("missing file: hosts=%v err=%v", hosts, err)
	}

	hosts, err = LoadSeedHosts("")
	if err != nil || hosts != nil {
		t.Fatalf("empty path: hosts=%v err=%v", hosts, err)
	}
}

func TestLoadSeedHosts_MalformedFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSeedHosts(path); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}
