package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
	"github.com/sm8ke1/pulsenet/internal/probe"
)

// MinInterval is the floor for per-host polling intervals.
const MinInterval = 250 * time.Millisecond

// HistoryCap derives the rolling-history length from the polling
// interval so the window spans roughly the last 60 seconds, bounded to
// [18, 100] samples.
func HistoryCap(interval time.Duration) int {
	if interval < MinInterval {
		interval = MinInterval
	}
	n := int(60_000 / interval.Milliseconds())
	if n < 18 {
		return 18
	}
	if n > 100 {
		return 100
	}
	return n
}

// Sink receives every poll result as it is produced.
type Sink func(host domain.Host, res domain.ProbeResult)

// Status is a point-in-time view of one tracked host.
type Status struct {
	Host    domain.Host        `json:"host"`
	Last    *domain.ProbeResult `json:"last"`
	History []domain.Sample    `json:"history"`
}

// entry outlives the loop goroutine: pausing or changing the interval
// replaces the loop but keeps the accumulated history.
type entry struct {
	mu       sync.Mutex
	host     domain.Host
	interval time.Duration
	cancel   context.CancelFunc // nil while paused
	last     *domain.ProbeResult
	history  []domain.Sample
}

// Poller runs one independent timer loop per active host. Hosts never
// share mutable state; the only cross-host fan-out is the sink list.
type Poller struct {
	logger          *zap.Logger
	pinger          probe.Pinger
	defaultInterval time.Duration

	mu      sync.Mutex
	entries map[domain.HostID]*entry
	sinks   []Sink
}

func New(logger *zap.Logger, pinger probe.Pinger, defaultInterval time.Duration) *Poller {
	if defaultInterval < MinInterval {
		defaultInterval = MinInterval
	}
	return &Poller{
		logger:          logger,
		pinger:          pinger,
		defaultInterval: defaultInterval,
		entries:         make(map[domain.HostID]*entry),
	}
}

// AddSink registers a result consumer. Must be called before Track.
func (p *Poller) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Track starts (or updates) polling for a host. Re-tracking an existing
// id updates its label/address and restarts the loop; the history is
// kept. Paused hosts are registered without a loop.
func (p *Poller) Track(h domain.Host) {
	p.mu.Lock()
	e, ok := p.entries[h.ID]
	if !ok {
		e = &entry{interval: p.defaultInterval}
		p.entries[h.ID] = e
	}
	p.mu.Unlock()

	e.mu.Lock()
	restart := !ok || e.host.Address != h.Address || e.host.Paused != h.Paused
	e.host = h
	e.mu.Unlock()

	if restart {
		p.stopLoop(e)
		if !h.Paused {
			p.startLoop(e)
		}
	}
}

// Forget stops and removes a host's loop.
func (p *Poller) Forget(id domain.HostID) {
	p.mu.Lock()
	e, ok := p.entries[id]
	delete(p.entries, id)
	p.mu.Unlock()
	if ok {
		p.stopLoop(e)
	}
}

// Pause suspends ticking but keeps the entry and its history.
func (p *Poller) Pause(id domain.HostID) {
	if e := p.entry(id); e != nil {
		e.mu.Lock()
		e.host.Paused = true
		e.mu.Unlock()
		p.stopLoop(e)
	}
}

// Resume restarts ticking from a fresh timer; missed ticks are not
// replayed.
func (p *Poller) Resume(id domain.HostID) {
	if e := p.entry(id); e != nil {
		e.mu.Lock()
		e.host.Paused = false
		running := e.cancel != nil
		e.mu.Unlock()
		if !running {
			p.startLoop(e)
		}
	}
}

// SetInterval changes a host's polling interval. The history is trimmed
// to the new cap immediately, keeping the most recent samples, and a
// running loop is restarted on the new period.
func (p *Poller) SetInterval(id domain.HostID, interval time.Duration) {
	e := p.entry(id)
	if e == nil {
		return
	}
	if interval < MinInterval {
		interval = MinInterval
	}

	e.mu.Lock()
	e.interval = interval
	if limit := HistoryCap(interval); len(e.history) > limit {
		e.history = append([]domain.Sample(nil), e.history[len(e.history)-limit:]...)
	}
	running := e.cancel != nil
	e.mu.Unlock()

	if running {
		p.stopLoop(e)
		p.startLoop(e)
	}
}

// Snapshot returns the current status of every tracked host.
func (p *Poller) Snapshot() []Status {
	p.mu.Lock()
	es := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		es = append(es, e)
	}
	p.mu.Unlock()

	out := make([]Status, 0, len(es))
	for _, e := range es {
		e.mu.Lock()
		st := Status{Host: e.host}
		if e.last != nil {
			cp := *e.last
			st.Last = &cp
		}
		st.History = append([]domain.Sample(nil), e.history...)
		e.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// StopAll cancels every loop. Entries stay registered so a restart can
// resume from the same configuration.
func (p *Poller) StopAll() {
	p.mu.Lock()
	es := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		es = append(es, e)
	}
	p.mu.Unlock()
	for _, e := range es {
		p.stopLoop(e)
	}
}

func (p *Poller) entry(id domain.HostID) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[id]
}

func (p *Poller) startLoop(e *entry) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		cancel()
		return
	}
	e.cancel = cancel
	interval := e.interval
	e.mu.Unlock()
	go p.loop(ctx, e, interval)
}

func (p *Poller) stopLoop(e *entry) {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// loop does an immediate tick, then one per interval until cancelled.
func (p *Poller) loop(ctx context.Context, e *entry, interval time.Duration) {
	p.tick(ctx, e)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx, e)
		}
	}
}

func (p *Poller) tick(ctx context.Context, e *entry) {
	e.mu.Lock()
	host := e.host
	e.mu.Unlock()

	res := p.pinger.Ping(ctx, host.Address)

	// A cleared timer never records its in-flight result.
	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	e.mu.Lock()
	cp := res
	e.last = &cp
	e.history = append(e.history, domain.Sample{At: now, RTTMs: res.RTTMs})
	if limit := HistoryCap(e.interval); len(e.history) > limit {
		e.history = e.history[len(e.history)-limit:]
	}
	e.mu.Unlock()

	p.mu.Lock()
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()
	for _, s := range sinks {
		s(host, res)
	}

	p.logger.Debug("poll_tick",
		zap.String("host_id", string(host.ID)),
		zap.String("address", host.Address),
		zap.Bool("alive", res.Alive),
		zap.String("error_kind", string(res.Kind)),
	)
}
