package probe

import (
	"context"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// ICMPPinger sends one echo request per call. Raw-socket mode needs
// elevation on most systems; errors carrying a permission marker are
// surfaced as their own kind so callers can treat them as an environment
// precondition rather than a host failure.
type ICMPPinger struct {
	Timeout    time.Duration
	Privileged bool
}

func NewICMPPinger(timeout time.Duration) *ICMPPinger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ICMPPinger{Timeout: timeout, Privileged: true}
}

func (p *ICMPPinger) Ping(ctx context.Context, host string) domain.ProbeResult {
	pinger := probing.New(host)
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.Resolve(); err != nil {
		return domain.ProbeResult{Kind: domain.ErrTransport, Message: err.Error()}
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		kind := domain.ErrTransport
		if IsPermissionError(err.Error()) {
			kind = domain.ErrPermissionDenied
		}
		return domain.ProbeResult{Kind: kind, Message: err.Error()}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return domain.ProbeResult{Kind: domain.ErrNoResponse, Message: "no reply"}
	}

	rtt := float64(stats.AvgRtt) / float64(time.Millisecond)
	return domain.ProbeResult{Alive: true, RTTMs: &rtt}
}

var permissionMarkers = []string{
	"operation not permitted",
	"permission denied",
	"access is denied",
	"socket: permission denied",
}

// IsPermissionError reports whether an error string indicates the
// process lacks the privilege to open an ICMP socket.
func IsPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
