package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/die-net/sockshttp/internal/dialer"
)

type Config struct {
	NegotiationTimeout time.Duration
	IdleTimeout        time.Duration
	MaxIdleConns       int

	InsecureSkipVerify bool
}

// New returns a RoundTripper that dials through d and decodes compressed
// responses.
func New(d dialer.Dialer, cfg Config) http.RoundTripper {
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}

	t := &http.Transport{
		DialContext:         d.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     cfg.IdleTimeout,
		TLSHandshakeTimeout: cfg.NegotiationTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // Opt-in via --insecure.
			ClientSessionCache: tls.NewLRUClientSessionCache(0),
		},
	}

	return &decodingTransport{base: t}
}

// CloseIdleConnections closes idle connections on the underlying transport.
func CloseIdleConnections(rt http.RoundTripper) {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := rt.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}
