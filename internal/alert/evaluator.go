package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// LogSink is where fired alerts land (the persisted application log).
type LogSink interface {
	AppendLog(domain.LogEntry) (domain.LogEntry, error)
}

// Notifier optionally forwards alerts out of process (webhook etc.).
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

type Config struct {
	Cooldown      time.Duration // minimum gap between alerts per host
	LatencyWarnMS float64       // Rule B threshold
}

// Evaluator inspects every poll result and decides whether it deserves
// a log alert. Failure alerts outrank latency alerts; at most one fires
// per tick, and each host has an independent cooldown window.
type Evaluator struct {
	logger   *zap.Logger
	sink     LogSink
	notifier Notifier
	cfg      Config

	mu          sync.Mutex
	lastAlertAt map[domain.HostID]time.Time
	editing     map[domain.HostID]bool

	now func() time.Time
}

func New(logger *zap.Logger, sink LogSink, notifier Notifier, cfg Config) *Evaluator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.LatencyWarnMS <= 0 {
		cfg.LatencyWarnMS = 250
	}
	return &Evaluator{
		logger:      logger,
		sink:        sink,
		notifier:    notifier,
		cfg:         cfg,
		lastAlertAt: make(map[domain.HostID]time.Time),
		editing:     make(map[domain.HostID]bool),
		now:         time.Now,
	}
}

// SetEditing marks a host as being edited in the UI; evaluation is
// skipped for it so edit churn generates no noise.
func (e *Evaluator) SetEditing(id domain.HostID, editing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if editing {
		e.editing[id] = true
	} else {
		delete(e.editing, id)
	}
}

// Forget drops per-host alert state (deleted hosts).
func (e *Evaluator) Forget(id domain.HostID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lastAlertAt, id)
	delete(e.editing, id)
}

// Observe is wired as a poller sink.
func (e *Evaluator) Observe(host domain.Host, res domain.ProbeResult) {
	e.mu.Lock()
	if e.editing[host.ID] || host.Paused {
		e.mu.Unlock()
		return
	}
	now := e.now()
	cooled := now.Sub(e.lastAlertAt[host.ID]) >= e.cfg.Cooldown

	var title, detail string
	switch {
	// Rule A: real failures. Permission errors are an environment
	// precondition, not a host fault, and never alert.
	case res.Kind != domain.ErrNone && res.Kind != domain.ErrPermissionDenied:
		if !cooled {
			e.mu.Unlock()
			return
		}
		title = "Host unreachable"
		detail = fmt.Sprintf("%s (%s): %s", host.Label, host.Address, statusText(res))

	// Rule B: numeric result over the warning threshold.
	case res.RTTMs != nil && *res.RTTMs > e.cfg.LatencyWarnMS:
		if !cooled {
			e.mu.Unlock()
			return
		}
		title = "High latency"
		detail = fmt.Sprintf("%s (%s): %.0f ms", host.Label, host.Address, *res.RTTMs)

	default:
		e.mu.Unlock()
		return
	}

	e.lastAlertAt[host.ID] = now
	e.mu.Unlock()

	entry := domain.LogEntry{
		Time:     now.UTC(),
		Category: domain.LogPingAlert,
		Title:    title,
		Detail:   detail,
	}
	if _, err := e.sink.AppendLog(entry); err != nil {
		e.logger.Warn("alert_append_error",
			zap.String("host_id", string(host.ID)),
			zap.Error(err),
		)
	}
	e.logger.Info("alert_fired",
		zap.String("host_id", string(host.ID)),
		zap.String("title", title),
		zap.String("detail", detail),
	)

	if e.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.notifier.Send(ctx, title, detail)
	}
}

func statusText(res domain.ProbeResult) string {
	switch res.Kind {
	case domain.ErrNoResponse:
		return "no response"
	case domain.ErrTransport:
		if res.Message != "" {
			return res.Message
		}
		return "transport error"
	case domain.ErrPermissionDenied:
		return "permission denied"
	default:
		return "ok"
	}
}
