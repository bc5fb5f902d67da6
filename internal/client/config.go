package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/sockshttp/internal/dialer"
)

const (
	DefaultDialTimeout        = 10 * time.Second
	DefaultNegotiationTimeout = 10 * time.Second
	DefaultIdleTimeout        = 90 * time.Second
	DefaultMaxRedirects       = 30
	DefaultUserAgent          = "sockshttp/1.0"
)

// Config binds a Client to a SOCKS5 proxy. Zero durations and counts select
// the package defaults.
type Config struct {
	ProxyHost string
	ProxyPort int
	Username  string
	Password  string

	// RemoteDNS sends target hostnames to the proxy for resolution instead
	// of resolving them locally (socks5h semantics).
	RemoteDNS bool

	// Timeout bounds a whole request including reading the body. Zero means
	// no limit.
	Timeout            time.Duration
	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	IdleTimeout        time.Duration

	// KeepAlive applies to the TCP connection to the proxy. The zero value
	// disables TCP keepalive.
	KeepAlive net.KeepAliveConfig

	UserAgent string

	// MaxRedirects caps how many redirects are followed. Negative disables
	// following, so the 3xx response itself is returned (and fails).
	MaxRedirects int

	InsecureSkipVerify bool

	// Logger receives request failures. Nil uses a warn-level stderr logger.
	Logger *zap.Logger
}

// SetProxyURL fills the proxy fields from a socks5:// or socks5h:// URL.
func (c *Config) SetProxyURL(raw string) error {
	e, err := dialer.ParseURL(raw)
	if err != nil {
		return err
	}
	c.ProxyHost = e.Host
	c.ProxyPort = e.Port
	c.Username = e.Username
	c.Password = e.Password
	c.RemoteDNS = e.RemoteDNS
	return nil
}

func (c Config) validate() error {
	if c.ProxyHost == "" {
		return errors.New("proxy host is required")
	}
	if c.ProxyPort < 1 || c.ProxyPort > 65535 {
		return fmt.Errorf("proxy port %d out of range", c.ProxyPort)
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("proxy password set without username")
	}
	if len(c.Username) > 255 || len(c.Password) > 255 {
		return errors.New("proxy credentials longer than 255 bytes")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.NegotiationTimeout <= 0 {
		c.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

func (c Config) endpoint() dialer.Endpoint {
	return dialer.Endpoint{
		Host:      c.ProxyHost,
		Port:      c.ProxyPort,
		Username:  c.Username,
		Password:  c.Password,
		RemoteDNS: c.RemoteDNS,
	}
}
