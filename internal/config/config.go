package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

type Config struct {
	Addr    string // API bind address, e.g., "127.0.0.1:8787"
	DataDir string // durable state directory
	LogDir  string // rotating log directory

	PingTimeout  time.Duration // per-probe budget
	PollInterval time.Duration // default per-host polling interval
	DNSTimeout   time.Duration // per-server resolution budget

	AlertCooldown time.Duration // minimum gap between alerts per host
	LatencyWarnMS float64       // Rule B threshold

	PublicAPIKeys []string
	AdminAPIKeys  []string
	PublicRPM     int
	PublicBurst   int
	AdminRPM      int
	AdminBurst    int

	AlertWebhookURL string // optional alert fan-out
	SeedHostsFile   string // optional YAML list of extra default hosts
}

func FromEnv() Config {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = "127.0.0.1:8787"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	return Config{
		Addr:    addr,
		DataDir: dataDir,
		LogDir:  logDir,

		PingTimeout:  envDuration("PING_TIMEOUT_MS", 10*time.Second),
		PollInterval: envDuration("POLL_INTERVAL_MS", 2*time.Second),
		DNSTimeout:   envDuration("DNS_TIMEOUT_MS", 4*time.Second),

		AlertCooldown: envDuration("ALERT_COOLDOWN_MS", time.Minute),
		LatencyWarnMS: envFloat("LATENCY_WARN_MS", 250),

		PublicAPIKeys: splitKeys(os.Getenv("PUBLIC_API_KEYS")),
		AdminAPIKeys:  splitKeys(os.Getenv("ADMIN_API_KEYS")),
		PublicRPM:     envInt("PUBLIC_RPM", 600),
		PublicBurst:   envInt("PUBLIC_BURST", 60),
		AdminRPM:      envInt("ADMIN_RPM", 120),
		AdminBurst:    envInt("ADMIN_BURST", 20),

		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		SeedHostsFile:   os.Getenv("SEED_HOSTS_FILE"),
	}
}

func envDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type seedHost struct {
	Label   string `yaml:"label"`
	Address string `yaml:"address"`
}

// LoadSeedHosts reads extra default hosts from a YAML file. A missing
// file is not an error; a malformed one is.
func LoadSeedHosts(path string) ([]domain.Host, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed hosts: %w", err)
	}

	var seeds []seedHost
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed hosts: %w", err)
	}

	out := make([]domain.Host, 0, len(seeds))
	for _, s := range seeds {
		label := strings.TrimSpace(s.Label)
		address := strings.TrimSpace(s.Address)
		if address == "" {
			continue
		}
		if label == "" {
			label = address
		}
		out = append(out, domain.Host{
			Label:   label,
			Address: address,
			Origin:  domain.OriginDefault,
		})
	}
	return out, nil
}
