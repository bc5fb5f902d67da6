package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/die-net/sockshttp/internal/socks5"
)

// SOCKS5ProxyDialer dials outbound TCP connections through a SOCKS5 proxy
// using the CONNECT command.
type SOCKS5ProxyDialer struct {
	cfg       Config
	proxyAddr string
	auth      socks5.Auth
	remoteDNS bool
	direct    Dialer
}

// NewSOCKS5ProxyDialer constructs a dialer for the proxy at proxyAddr.
//
// If username is non-empty, username/password authentication is offered.
// With remoteDNS set, target hostnames are passed to the proxy for
// resolution; otherwise they are resolved locally and the proxy only sees
// IP addresses.
func NewSOCKS5ProxyDialer(cfg Config, proxyAddr, username, password string, remoteDNS bool) *SOCKS5ProxyDialer {
	return &SOCKS5ProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		auth:      socks5.Auth{Username: username, Password: password},
		remoteDNS: remoteDNS,
		direct:    NewDirectDialer(cfg),
	}
}

// DialContext establishes a TCP connection to address via the proxy.
//
// The handshake is performed synchronously before returning. If
// NegotiationTimeout is set, a deadline is applied during negotiation and
// cleared before returning. Cancelling ctx aborts an in-progress handshake.
func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: unsupported network", network, address)
	}

	target := address
	if !f.remoteDNS {
		var err error
		target, err = f.resolve(ctx, network, address)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, err)
		}
	}

	c, err := f.direct.DialContext(ctx, "tcp", f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	if f.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(f.cfg.NegotiationTimeout))
	}

	// Unblock the handshake when ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Unix(1, 0))
	})

	err = socks5.ClientDial(c, f.auth, target)
	if !stop() {
		_ = c.Close()
		return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, ctx.Err())
	}
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, err)
	}

	_ = c.SetDeadline(time.Time{})
	return c, nil
}

// resolve turns host:port into ip:port using the configured resolver,
// preferring IPv4 for tcp and honoring tcp4/tcp6.
func (f *SOCKS5ProxyDialer) resolve(ctx context.Context, network, address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", err
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return address, nil
	}

	ipNet := "ip"
	switch network {
	case "tcp4":
		ipNet = "ip4"
	case "tcp6":
		ipNet = "ip6"
	}

	addrs, err := f.cfg.resolver().LookupNetIP(ctx, ipNet, host)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", errors.New("resolve " + host + ": no addresses")
	}

	best := addrs[0]
	for _, a := range addrs {
		if a.Unmap().Is4() {
			best = a
			break
		}
	}
	return net.JoinHostPort(best.Unmap().String(), port), nil
}
