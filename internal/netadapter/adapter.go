package netadapter

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// cacheTTL bounds how long an adapter listing is reused before the slow
// PowerShell path runs again.
const cacheTTL = 5 * time.Second

const listCommand = "Get-DnsClientServerAddress -AddressFamily IPv4 | " +
	"Select-Object InterfaceAlias,ServerAddresses | ConvertTo-Json -Depth 4 -Compress"

var (
	ErrInvalidInput        = errors.New("invalid-input")
	ErrUnsupportedPlatform = errors.New("unsupported-platform")
)

// Runner executes an OS shell command and returns its stdout. Split out
// so tests can fake the PowerShell boundary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Manager reads and writes per-adapter DNS configuration through OS
// commands, caching listings briefly.
type Manager struct {
	logger *zap.Logger
	runner Runner
	goos   string

	mu       sync.Mutex
	cachedAt time.Time
	cached   []domain.Adapter
}

func NewManager(logger *zap.Logger, runner Runner) *Manager {
	if runner == nil {
		runner = &execRunner{timeout: 10 * time.Second}
	}
	return &Manager{logger: logger, runner: runner, goos: runtime.GOOS}
}

// List enumerates adapters with their configured DNS servers. Results
// are cached for a few seconds unless forceRefresh is set.
func (m *Manager) List(ctx context.Context, forceRefresh bool) ([]domain.Adapter, error) {
	m.mu.Lock()
	if !forceRefresh && time.Since(m.cachedAt) <= cacheTTL && m.cached != nil {
		out := append([]domain.Adapter(nil), m.cached...)
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	adapters, err := m.list(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cached = adapters
	m.cachedAt = time.Now()
	m.mu.Unlock()
	return append([]domain.Adapter(nil), adapters...), nil
}

func (m *Manager) list(ctx context.Context) ([]domain.Adapter, error) {
	if m.goos == "windows" {
		out, err := m.runner.Run(ctx, "powershell",
			"-NoLogo", "-NoProfile", "-NonInteractive",
			"-ExecutionPolicy", "Bypass", "-Command", listCommand)
		if err != nil {
			return nil, err
		}
		return ParseAdapterJSON(out), nil
	}

	// Elsewhere only the interface names are available; DNS is managed
	// per-resolver, not per-adapter.
	stats, err := psnet.Interfaces()
	if err != nil {
		return nil, err
	}
	var adapters []domain.Adapter
	for _, st := range stats {
		up, loopback := false, false
		for _, f := range st.Flags {
			switch f {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if up && !loopback {
			adapters = append(adapters, domain.Adapter{Name: st.Name})
		}
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i].Name < adapters[j].Name })
	return adapters, nil
}

// SetDNS points an adapter at the given primary (and optional secondary)
// DNS server.
func (m *Manager) SetDNS(ctx context.Context, adapter, primary, secondary string) error {
	adapter = strings.TrimSpace(adapter)
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)
	if adapter == "" || primary == "" {
		return ErrInvalidInput
	}
	if m.goos != "windows" {
		return ErrUnsupportedPlatform
	}

	servers := []string{"'" + psEscape(primary) + "'"}
	if secondary != "" {
		servers = append(servers, "'"+psEscape(secondary)+"'")
	}
	command := "Set-DnsClientServerAddress -InterfaceAlias '" + psEscape(adapter) +
		"' -ServerAddresses @(" + strings.Join(servers, ",") + ")"

	if _, err := m.runner.Run(ctx, "powershell",
		"-NoLogo", "-NoProfile", "-NonInteractive",
		"-ExecutionPolicy", "Bypass", "-Command", command); err != nil {
		return err
	}
	m.clearCache()
	m.logger.Info("adapter_dns_set",
		zap.String("adapter", adapter),
		zap.String("primary", primary),
		zap.String("secondary", secondary),
	)
	return nil
}

// ResetDNS restores an adapter to automatic (DHCP) DNS.
func (m *Manager) ResetDNS(ctx context.Context, adapter string) error {
	adapter = strings.TrimSpace(adapter)
	if adapter == "" {
		return ErrInvalidInput
	}
	if m.goos != "windows" {
		return ErrUnsupportedPlatform
	}

	command := "Set-DnsClientServerAddress -InterfaceAlias '" + psEscape(adapter) +
		"' -ResetServerAddresses"
	if _, err := m.runner.Run(ctx, "powershell",
		"-NoLogo", "-NoProfile", "-NonInteractive",
		"-ExecutionPolicy", "Bypass", "-Command", command); err != nil {
		return err
	}
	m.clearCache()
	m.logger.Info("adapter_dns_reset", zap.String("adapter", adapter))
	return nil
}

func (m *Manager) clearCache() {
	m.mu.Lock()
	m.cached = nil
	m.cachedAt = time.Time{}
	m.mu.Unlock()
}

func psEscape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

type psAdapterRow struct {
	InterfaceAlias  string   `json:"InterfaceAlias"`
	ServerAddresses []string `json:"ServerAddresses"`
}

// ParseAdapterJSON decodes the PowerShell listing, which is a single
// object when exactly one adapter matches and an array otherwise.
func ParseAdapterJSON(raw string) []domain.Adapter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var rows []psAdapterRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		var single psAdapterRow
		if err := json.Unmarshal([]byte(raw), &single); err != nil {
			return nil
		}
		rows = []psAdapterRow{single}
	}

	var adapters []domain.Adapter
	for _, row := range rows {
		name := strings.TrimSpace(row.InterfaceAlias)
		if name == "" {
			continue
		}
		var dns []string
		for _, s := range row.ServerAddresses {
			if s = strings.TrimSpace(s); s != "" {
				dns = append(dns, s)
			}
		}
		adapters = append(adapters, domain.Adapter{Name: name, DNS: dns})
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i].Name < adapters[j].Name })
	return adapters
}
