package probe

import (
	"context"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

// Pinger performs a single echo attempt against a host address.
type Pinger interface {
	Ping(ctx context.Context, host string) domain.ProbeResult
}

// Resolver resolves a domain through one specific DNS server.
type Resolver interface {
	Resolve(ctx context.Context, name, server string) domain.ServerResult
}
