package integration

import (
	"context"
	"fmt"
	"net"
	"time"
)

// ConnectivityStatus is one probe result.
type ConnectivityStatus struct {
	Online    bool          `json:"online"`
	CheckedAt time.Time     `json:"checked_at"`
	Latency   time.Duration `json:"latency"`
	Detail    string        `json:"detail,omitempty"`
}

// ConnectivityProbe checks whether the network looks usable. It is
// peripheral diagnostics for the status surface and for restoring
// recovered data sources; nothing in the recovery path depends on it.
type ConnectivityProbe interface {
	Check(ctx context.Context) ConnectivityStatus
}

// connectivityProbe resolves a well-known host and dials it over TCP.
type connectivityProbe struct {
	host    string
	port    string
	timeout time.Duration

	resolver interface {
		LookupHost(ctx context.Context, host string) ([]string, error)
	}
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConnectivityProbe creates a probe against the given host and port.
// Empty values default to registry.npmjs.org:443, the registry the Task
// Master CLI itself talks to.
func NewConnectivityProbe(host, port string, timeout time.Duration) ConnectivityProbe {
	if host == "" {
		host = "registry.npmjs.org"
	}
	if port == "" {
		port = "443"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var d net.Dialer
	return &connectivityProbe{
		host:     host,
		port:     port,
		timeout:  timeout,
		resolver: net.DefaultResolver,
		dial:     d.DialContext,
	}
}

func (p *connectivityProbe) Check(ctx context.Context) ConnectivityStatus {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	status := ConnectivityStatus{CheckedAt: start}

	if _, err := p.resolver.LookupHost(checkCtx, p.host); err != nil {
		status.Detail = fmt.Sprintf("dns lookup %s: %v", p.host, err)
		return status
	}

	conn, err := p.dial(checkCtx, "tcp", net.JoinHostPort(p.host, p.port))
	if err != nil {
		status.Detail = fmt.Sprintf("dial %s:%s: %v", p.host, p.port, err)
		return status
	}
	_ = conn.Close()

	status.Online = true
	status.Latency = time.Since(start)
	return status
}
