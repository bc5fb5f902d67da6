package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultSOCKS5Port is used when a proxy URL has no port.
const DefaultSOCKS5Port = 1080

// Endpoint is a parsed SOCKS5 proxy URL.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string

	// RemoteDNS is set for socks5h:// and means target hostnames are sent to
	// the proxy unresolved.
	RemoteDNS bool
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL formats e back into a proxy URL, omitting the password.
func (e Endpoint) URL() string {
	u := url.URL{Scheme: "socks5", Host: e.Addr()}
	if e.RemoteDNS {
		u.Scheme = "socks5h"
	}
	if e.Username != "" {
		u.User = url.User(e.Username)
	}
	return u.String()
}

// ParseURL parses a proxy URL of the form
//
//   - socks5://[user:pass@]host[:port]
//   - socks5h://[user:pass@]host[:port]
//
// The scheme is case-insensitive and the port defaults to 1080.
func ParseURL(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid url: %w", err)
	}

	if u.Path != "" && u.Path != "/" {
		return Endpoint{}, errors.New("invalid url: path should be empty")
	}

	var e Endpoint
	switch strings.ToLower(u.Scheme) {
	case "":
		return Endpoint{}, errors.New("invalid url: missing scheme")
	case "socks5":
	case "socks5h":
		e.RemoteDNS = true
	default:
		return Endpoint{}, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}

	e.Host = u.Hostname()
	if e.Host == "" {
		return Endpoint{}, errors.New("invalid url: missing host")
	}

	e.Port = DefaultSOCKS5Port
	if p := u.Port(); p != "" {
		e.Port, err = strconv.Atoi(p)
		if err != nil || e.Port < 1 || e.Port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid url: bad port %q", p)
		}
	}

	if u.User != nil {
		e.Username = u.User.Username()
		e.Password, _ = u.User.Password()
	}

	return e, nil
}
