package dialer

import (
	"context"
	"fmt"
	"net"
)

type directDialer struct {
	d net.Dialer
}

// NewDirectDialer returns a Dialer that connects without any proxy.
func NewDirectDialer(cfg Config) Dialer {
	d := net.Dialer{
		Timeout:         cfg.DialTimeout,
		KeepAliveConfig: cfg.KeepAlive,
		Resolver:        cfg.Resolver,
	}
	if !cfg.KeepAlive.Enable {
		d.KeepAlive = -1
	}
	return &directDialer{d: d}
}

func (f *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := f.d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return conn, nil
}
