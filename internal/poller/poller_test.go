package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// --- fakes ---

type countingPinger struct {
	mu sync.Mutex
	n  int
}

func (c *countingPinger) Ping(ctx context.Context, host string) domain.ProbeResult {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	rtt := 12.5
	return domain.ProbeResult{Alive: true, RTTMs: &rtt}
}

func (c *countingPinger) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context, host string) domain.ProbeResult {
	return domain.ProbeResult{Alive: false, Kind: domain.ErrNoResponse, Message: "no reply"}
}

func testHost(id string) domain.Host {
	return domain.Host{ID: domain.HostID(id), Label: id, Address: "192.0.2.1"}
}

// --- tests ---

func TestHistoryCap(t *testing.T) {
	cases := []struct {
		interval time.Duration
		want     int
	}{
		{2 * time.Second, 30},
		{250 * time.Millisecond, 100}, // 240 clamps down
		{100 * time.Millisecond, 100}, // below min interval
		{10 * time.Second, 18},        // 6 clamps up
		{time.Minute, 18},
		{600 * time.Millisecond, 100},
		{time.Second, 60},
		{3 * time.Second, 20},
	}
	for _, c := range cases {
		if got := HistoryCap(c.interval); got != c.want {
			t.Errorf("HistoryCap(%v) = %d, want %d", c.interval, got, c.want)
		}
	}
}

func TestPoller_TickAppendsOneSample(t *testing.T) {
	pinger := &countingPinger{}
	p := New(zap.NewNop(), pinger, time.Second)
	h := testHost("H1")

	p.mu.Lock()
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e
	p.mu.Unlock()

	ctx := context.Background()
	p.tick(ctx, e)
	p.tick(ctx, e)
	p.tick(ctx, e)

	st := p.Snapshot()
	if len(st) != 1 {
		t.Fatalf("want 1 status, got %d", len(st))
	}
	if pinger.calls() != 3 {
		t.Fatalf("want 3 ping calls, got %d", pinger.calls())
	}
	if len(st[0].History) != 3 {
		t.Fatalf("want 3 samples, got %d", len(st[0].History))
	}
	if st[0].Last == nil || !st[0].Last.Alive {
		t.Fatalf("unexpected last result: %+v", st[0].Last)
	}
}

func TestPoller_FailedTickRecordsNilSample(t *testing.T) {
	p := New(zap.NewNop(), failingPinger{}, time.Second)
	h := testHost("H1")
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e

	p.tick(context.Background(), e)

	st := p.Snapshot()
	if len(st[0].History) != 1 {
		t.Fatalf("want 1 sample, got %d", len(st[0].History))
	}
	if st[0].History[0].RTTMs != nil {
		t.Fatalf("failed probe must record a nil rtt, got %v", *st[0].History[0].RTTMs)
	}
	if st[0].Last == nil || st[0].Last.Kind != domain.ErrNoResponse {
		t.Fatalf("unexpected last result: %+v", st[0].Last)
	}
}

func TestPoller_HistoryTrimsToCap(t *testing.T) {
	p := New(zap.NewNop(), &countingPinger{}, time.Second)
	h := testHost("H1")
	e := &entry{host: h, interval: 3 * time.Second} // cap 20
	p.entries[h.ID] = e

	for i := 0; i < 25; i++ {
		p.tick(context.Background(), e)
	}

	st := p.Snapshot()
	if got := len(st[0].History); got != 20 {
		t.Fatalf("want history trimmed to 20, got %d", got)
	}
}

func TestPoller_CancelledTickIsDiscarded(t *testing.T) {
	p := New(zap.NewNop(), &countingPinger{}, time.Second)
	h := testHost("H1")
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.tick(ctx, e)

	st := p.Snapshot()
	if len(st[0].History) != 0 || st[0].Last != nil {
		t.Fatalf("cancelled tick must not record: history=%d last=%v", len(st[0].History), st[0].Last)
	}
}

func TestPoller_SetIntervalTrimsKeepingNewest(t *testing.T) {
	p := New(zap.NewNop(), &countingPinger{}, time.Second)
	h := testHost("H1")
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e

	base := time.Now()
	for i := 0; i < 50; i++ {
		v := float64(i)
		e.history = append(e.history, domain.Sample{At: base.Add(time.Duration(i) * time.Second), RTTMs: &v})
	}

	p.SetInterval(h.ID, 3*time.Second) // cap 20

	e.mu.Lock()
	got := append([]domain.Sample(nil), e.history...)
	e.mu.Unlock()

	if len(got) != 20 {
		t.Fatalf("want 20 samples after trim, got %d", len(got))
	}
	if *got[0].RTTMs != 30 || *got[19].RTTMs != 49 {
		t.Fatalf("trim must keep the newest samples, got first=%v last=%v", *got[0].RTTMs, *got[19].RTTMs)
	}
}

func TestPoller_SetIntervalClampsToMinimum(t *testing.T) {
	p := New(zap.NewNop(), &countingPinger{}, time.Second)
	h := testHost("H1")
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e

	p.SetInterval(h.ID, 10*time.Millisecond)

	e.mu.Lock()
	got := e.interval
	e.mu.Unlock()
	if got != MinInterval {
		t.Fatalf("want interval clamped to %v, got %v", MinInterval, got)
	}
}

func TestPoller_TrackStartsAndForgetStops(t *testing.T) {
	pinger := &countingPinger{}
	p := New(zap.NewNop(), pinger, MinInterval)
	h := testHost("H1")

	p.Track(h)
	time.Sleep(50 * time.Millisecond) // immediate tick fires
	if pinger.calls() == 0 {
		t.Fatal("expected at least one ping after Track")
	}

	p.Forget(h.ID)
	if len(p.Snapshot()) != 0 {
		t.Fatal("forgotten host still in snapshot")
	}
}

func TestPoller_TrackPausedHostDoesNotPoll(t *testing.T) {
	pinger := &countingPinger{}
	p := New(zap.NewNop(), pinger, MinInterval)
	h := testHost("H1")
	h.Paused = true

	p.Track(h)
	time.Sleep(30 * time.Millisecond)

	if pinger.calls() != 0 {
		t.Fatalf("paused host must not poll, got %d calls", pinger.calls())
	}
	st := p.Snapshot()
	if len(st) != 1 || !st[0].Host.Paused {
		t.Fatalf("paused host should still be registered: %+v", st)
	}
}

func TestPoller_PauseKeepsHistory(t *testing.T) {
	p := New(zap.NewNop(), &countingPinger{}, time.Second)
	h := testHost("H1")
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e
	p.tick(context.Background(), e)

	p.Pause(h.ID)

	st := p.Snapshot()
	if !st[0].Host.Paused {
		t.Fatal("host not marked paused")
	}
	if len(st[0].History) != 1 {
		t.Fatalf("pause must keep history, got %d samples", len(st[0].History))
	}
}

func TestPoller_SinksReceiveResults(t *testing.T) {
	p := New(zap.NewNop(), &countingPinger{}, time.Second)

	var mu sync.Mutex
	var seen []domain.HostID
	p.AddSink(func(h domain.Host, res domain.ProbeResult) {
		mu.Lock()
		seen = append(seen, h.ID)
		mu.Unlock()
	})

	h := testHost("H1")
	e := &entry{host: h, interval: time.Second}
	p.entries[h.ID] = e
	p.tick(context.Background(), e)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != h.ID {
		t.Fatalf("sink not called: %v", seen)
	}
}
