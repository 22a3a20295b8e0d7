package dnsbench

import (
	"context"
	"errors"
	"math"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
	"github.com/sm8ke1/pulsenet/internal/probe"
)

const (
	DefaultRounds = 3
	MaxRounds     = 10
	MaxBatchSize  = 30

	customServersPref = "custom_dns_servers"
)

var (
	ErrBusy           = errors.New("dns operation already running")
	ErrInvalidDomain  = errors.New("invalid-domain")
	ErrInvalidServer  = errors.New("invalid-dns-server")
	ErrEmptyBatch     = errors.New("empty-batch")
	ErrBatchTooLarge  = errors.New("too-many-domains")
	ErrDuplicateEntry = errors.New("duplicate-server")
)

// DefaultServers are the built-in resolvers tested on every run.
var DefaultServers = []string{
	"8.8.8.8",
	"8.8.4.4",
	"1.1.1.1",
	"1.0.0.1",
	"9.9.9.9",
	"149.112.112.112",
	"208.67.222.222",
	"208.67.220.220",
}

// PrefStore persists the custom server list between sessions.
type PrefStore interface {
	Pref(key string) string
	SetPref(key, value string) error
}

type TestReport struct {
	Domain  string                `json:"domain"`
	Results []domain.ServerResult `json:"results"`
	Usable  int                   `json:"usable"`
	Blocked int                   `json:"blocked"`
}

type BenchmarkReport struct {
	Domain    string                 `json:"domain"`
	Rounds    int                    `json:"rounds"`
	Stats     []domain.BenchmarkStat `json:"stats"`
	Top       []domain.BenchmarkStat `json:"top"`
	LastRound []domain.ServerResult  `json:"last_round,omitempty"`
	Err       string                 `json:"error,omitempty"`
}

type BatchEntry struct {
	Domain   string `json:"domain"`
	Resolved bool   `json:"resolved"`
}

// Engine runs DNS resolution checks across the configured server list.
// A single operation may run at a time; concurrent calls are rejected,
// not queued.
type Engine struct {
	logger   *zap.Logger
	resolver probe.Resolver
	prefs    PrefStore
	busy     atomic.Bool

	mu     sync.Mutex
	custom []string
}

func New(logger *zap.Logger, resolver probe.Resolver, prefs PrefStore) *Engine {
	e := &Engine{logger: logger, resolver: resolver, prefs: prefs}
	if prefs != nil {
		if raw := prefs.Pref(customServersPref); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					e.custom = append(e.custom, s)
				}
			}
		}
	}
	return e
}

// Servers returns defaults followed by custom servers, deduplicated.
func (e *Engine) Servers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return mergeServers(e.custom)
}

func mergeServers(custom []string) []string {
	out := append([]string(nil), DefaultServers...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	for _, s := range custom {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// AddCustomServer validates and stores a user-supplied resolver. Only
// IPv4/IPv6 literals are accepted; rejection leaves the list unchanged.
func (e *Engine) AddCustomServer(server string) error {
	trimmed := strings.TrimSpace(server)
	if _, err := netip.ParseAddr(trimmed); err != nil {
		return ErrInvalidServer
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range mergeServers(e.custom) {
		if s == trimmed {
			return ErrDuplicateEntry
		}
	}
	e.custom = append(e.custom, trimmed)
	return e.persistLocked()
}

func (e *Engine) RemoveCustomServer(server string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.custom {
		if s == server {
			e.custom = append(e.custom[:i], e.custom[i+1:]...)
			return e.persistLocked()
		}
	}
	return errors.New("server-not-found")
}

func (e *Engine) persistLocked() error {
	if e.prefs == nil {
		return nil
	}
	return e.prefs.SetPref(customServersPref, strings.Join(e.custom, ","))
}

// Test runs one resolution attempt per configured server.
func (e *Engine) Test(ctx context.Context, name string) (TestReport, error) {
	sanitized := SanitizeDomain(name)
	if sanitized == "" {
		return TestReport{}, ErrInvalidDomain
	}
	if !e.busy.CompareAndSwap(false, true) {
		return TestReport{}, ErrBusy
	}
	defer e.busy.Store(false)

	return e.runRound(ctx, sanitized, e.Servers())
}

// runRound resolves the domain via every server, sequentially. A failed
// server contributes a blocked classification, never a round failure.
func (e *Engine) runRound(ctx context.Context, name string, servers []string) (TestReport, error) {
	report := TestReport{Domain: name}
	for _, server := range servers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		res := e.resolver.Resolve(ctx, name, server)
		report.Results = append(report.Results, res)
		if res.Usable {
			report.Usable++
		} else {
			report.Blocked++
		}
	}
	return report, nil
}

// Benchmark repeats the single test for the given number of rounds
// (clamped to [1, 10], 0 meaning the default) and aggregates per-server
// success rate and average latency over successful attempts only.
func (e *Engine) Benchmark(ctx context.Context, name string, rounds int) (BenchmarkReport, error) {
	sanitized := SanitizeDomain(name)
	if sanitized == "" {
		return BenchmarkReport{}, ErrInvalidDomain
	}
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	if rounds > MaxRounds {
		rounds = MaxRounds
	}
	if !e.busy.CompareAndSwap(false, true) {
		return BenchmarkReport{}, ErrBusy
	}
	defer e.busy.Store(false)

	servers := e.Servers()
	acc := make(map[string]*accumulator, len(servers))
	for _, s := range servers {
		acc[s] = &accumulator{}
	}

	report := BenchmarkReport{Domain: sanitized, Rounds: rounds}
	completed := 0
	for round := 0; round < rounds; round++ {
		rr, err := e.runRound(ctx, sanitized, servers)
		if err != nil {
			// Abort, keeping whatever full rounds already finished.
			report.Err = err.Error()
			break
		}
		for _, res := range rr.Results {
			a := acc[res.Server]
			a.total++
			if res.Usable && res.LatencyMs != nil {
				a.successes++
				a.latencySum += *res.LatencyMs
			}
		}
		report.LastRound = rr.Results
		completed++
	}

	report.Stats = rank(servers, acc, completed)
	if n := len(report.Stats); n > 3 {
		report.Top = report.Stats[:3]
	} else {
		report.Top = report.Stats
	}

	e.logger.Info("dns_benchmark",
		zap.String("domain", sanitized),
		zap.Int("rounds_completed", completed),
		zap.Int("servers", len(servers)),
	)
	return report, nil
}

type accumulator struct {
	successes  int
	total      int
	latencySum float64
}

// rank orders servers ascending by average latency over successful
// rounds; servers that never succeeded sort after every server that did.
func rank(servers []string, acc map[string]*accumulator, rounds int) []domain.BenchmarkStat {
	stats := make([]domain.BenchmarkStat, 0, len(servers))
	for _, s := range servers {
		a := acc[s]
		st := domain.BenchmarkStat{Server: s}
		if a.successes > 0 {
			avg := a.latencySum / float64(a.successes)
			st.AvgLatencyMs = &avg
		}
		if rounds > 0 {
			st.SuccessRate = int(math.Round(100 * float64(a.successes) / float64(rounds)))
		}
		stats = append(stats, st)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i].AvgLatencyMs, stats[j].AvgLatencyMs
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return stats
}

// Batch runs a single test per domain in a newline-separated list and
// classifies each one resolved iff any server returned usable.
func (e *Engine) Batch(ctx context.Context, input string) ([]BatchEntry, error) {
	domains := SplitBatch(input)
	if len(domains) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(domains) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	servers := e.Servers()
	out := make([]BatchEntry, 0, len(domains))
	for _, d := range domains {
		rr, err := e.runRound(ctx, d, servers)
		if err != nil {
			return out, err
		}
		out = append(out, BatchEntry{Domain: d, Resolved: rr.Usable > 0})
	}
	return out, nil
}

// SanitizeDomain strips scheme, path, query, and fragment from raw user
// input. An empty result means the input was invalid.
func SanitizeDomain(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s, _, _ = strings.Cut(s, "/")
	s, _, _ = strings.Cut(s, "?")
	s, _, _ = strings.Cut(s, "#")
	return s
}

// SplitBatch sanitizes and deduplicates a newline-separated domain list,
// dropping empty, duplicate, and syntactically invalid lines.
func SplitBatch(input string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(input, "\n") {
		d := SanitizeDomain(line)
		if d == "" || seen[d] || !ValidDomain(d) {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// ValidDomain accepts hostnames with non-empty labels (letters, digits,
// hyphens) and bare IP literals.
func ValidDomain(name string) bool {
	if name == "" {
		return false
	}
	if _, err := netip.ParseAddr(name); err == nil {
		return true
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			default:
				return false
			}
		}
	}
	return true
}
