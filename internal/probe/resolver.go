package probe

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// ServerResolver issues a lookup through one explicit DNS server instead
// of the system default, so each configured server can be judged
// independently.
type ServerResolver struct {
	Timeout time.Duration
}

func NewServerResolver(timeout time.Duration) *ServerResolver {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &ServerResolver{Timeout: timeout}
}

func (s *ServerResolver) Resolve(ctx context.Context, name, server string) domain.ServerResult {
	out := domain.ServerResult{Server: server}

	target, ok := ServerAddr(server)
	if !ok {
		out.Err = "invalid-server"
		return out
	}

	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: s.Timeout}
			return d.DialContext(ctx, network, target)
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	start := time.Now()
	ips, err := r.LookupIP(ctx, "ip", name)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	out.LatencyMs = &elapsed

	if err != nil {
		out.Err = err.Error()
		if ctx.Err() != nil {
			out.Err = "timeout"
		}
		return out
	}
	out.Usable = len(ips) > 0
	if !out.Usable {
		out.Err = "no-records"
	}
	return out
}

// ServerAddr normalizes a DNS server string into a dialable host:port,
// defaulting to port 53. Accepts IPv4/IPv6 literals with or without an
// explicit port.
func ServerAddr(server string) (string, bool) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		return "", false
	}
	if ap, err := netip.ParseAddrPort(trimmed); err == nil {
		return ap.String(), true
	}
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return net.JoinHostPort(addr.String(), "53"), true
	}
	return "", false
}
