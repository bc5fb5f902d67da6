package testutil

import (
	"context"
	"io"
	"net"
	"testing"
)

// StartEchoTCPServer accepts a single connection and echoes everything it
// reads until the peer closes.
func StartEchoTCPServer(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	return ln
}

// EchoLines writes each line to rw and fails t unless the same bytes come
// back before the next line is sent.
func EchoLines(t *testing.T, rw io.ReadWriter, lines ...string) {
	t.Helper()

	for _, line := range lines {
		if _, err := io.WriteString(rw, line); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
		got := make([]byte, len(line))
		if _, err := io.ReadFull(rw, got); err != nil {
			t.Fatalf("read back %q: %v", line, err)
		}
		if string(got) != line {
			t.Fatalf("echoed %q, sent %q", got, line)
		}
	}
}
