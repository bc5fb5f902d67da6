package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect to the proxy.
	DialTimeout time.Duration

	// NegotiationTimeout bounds the SOCKS5 handshake once connected.
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	// Resolver is used for local name resolution. Nil means
	// net.DefaultResolver.
	Resolver *net.Resolver
}

func (c Config) resolver() *net.Resolver {
	if c.Resolver != nil {
		return c.Resolver
	}
	return net.DefaultResolver
}
