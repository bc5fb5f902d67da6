package testutil

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/die-net/sockshttp/internal/socks5"
)

// SOCKS5Server is an in-process SOCKS5 proxy for tests. It supports CONNECT
// only and dials targets directly.
type SOCKS5Server struct {
	ln     net.Listener
	auth   socks5.Auth
	cancel context.CancelFunc

	mu       sync.Mutex
	requests []string
	wg       sync.WaitGroup
}

// StartSOCKS5Server starts a proxy on a loopback port requiring auth when
// auth.Username is non-empty. It is shut down by t.Cleanup.
func StartSOCKS5Server(t *testing.T, ctx context.Context, auth socks5.Auth) *SOCKS5Server {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &SOCKS5Server{ln: ln, auth: auth, cancel: cancel}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx)
	}()
	t.Cleanup(s.Close)

	return s
}

// Addr returns the proxy's host:port.
func (s *SOCKS5Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the proxy's IP.
func (s *SOCKS5Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the proxy's TCP port.
func (s *SOCKS5Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Requests returns the CONNECT targets seen so far, as sent by clients.
func (s *SOCKS5Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Close stops accepting, tears down active tunnels and waits for them.
func (s *SOCKS5Server) Close() {
	s.cancel()
	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *SOCKS5Server) serve(ctx context.Context) {
	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			defer c.Close()
			s.handle(ctx, c)
		}()
	}
}

func (s *SOCKS5Server) handle(ctx context.Context, c net.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if err := socks5.ServerNegotiate(c, s.auth); err != nil {
		return
	}

	req, err := socks5.ServerReadRequest(c)
	if err != nil {
		return
	}
	if req.Cmd != socks5.CmdConnect {
		socks5.WriteCommandNotSupportedReply(c, req.Atyp)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req.Address)
	s.mu.Unlock()

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address)
	if err != nil {
		socks5.WriteHostUnreachableReply(c, req.Atyp)
		return
	}
	defer dst.Close()

	if err := socks5.WriteSuccessReply(c, dst.LocalAddr()); err != nil {
		return
	}

	_ = Relay(ctx, c, dst)
}
