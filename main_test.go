package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/die-net/sockshttp/internal/socks5"
	"github.com/die-net/sockshttp/internal/testutil"
)

func TestParseTCPKeepAlive(t *testing.T) {
	tests := []struct {
		in      string
		want    net.KeepAliveConfig
		wantErr bool
	}{
		{in: "on", want: net.KeepAliveConfig{Enable: true}},
		{in: " OFF ", want: net.KeepAliveConfig{}},
		{in: "45:45:3", want: net.KeepAliveConfig{Enable: true, Idle: 45 * time.Second, Interval: 45 * time.Second, Count: 3}},
		{in: "", wantErr: true},
		{in: "1:2", wantErr: true},
		{in: "0:1:1", wantErr: true},
		{in: "1:x:1", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseTCPKeepAlive(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err=%v wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %+v want %+v", tt.in, got, tt.want)
		}
	}
}

func TestRequestOptions(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		params  []string
		data    string
		wantN   int
		wantErr bool
	}{
		{name: "none"},
		{name: "headers", headers: []string{"Accept: text/plain", "X-A:b"}, wantN: 2},
		{name: "params collapse to one option", params: []string{"a=1", "b="}, wantN: 1},
		{name: "data", data: "x=1", wantN: 1},
		{name: "bad header", headers: []string{"no colon"}, wantErr: true},
		{name: "bad param", params: []string{"=1"}, wantErr: true},
		{name: "missing data file", data: "@/nonexistent/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := requestOptions(tt.headers, tt.params, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if len(opts) != tt.wantN {
				t.Fatalf("got %d options want %d", len(opts), tt.wantN)
			}
		})
	}
}

func TestRequestOptionsDataFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "body")
	if err := os.WriteFile(name, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	opts, err := requestOptions(nil, nil, "@"+name)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 1 {
		t.Fatalf("got %d options", len(opts))
	}
}

func TestDefaultProxy(t *testing.T) {
	t.Setenv("ALL_PROXY", "")
	t.Setenv("all_proxy", "")
	if got := defaultProxy(); got != "socks5h://127.0.0.1:1080" {
		t.Fatalf("got %q", got)
	}

	t.Setenv("all_proxy", "socks5://10.0.0.1:9050")
	if got := defaultProxy(); got != "socks5://10.0.0.1:9050" {
		t.Fatalf("got %q", got)
	}

	t.Setenv("ALL_PROXY", "http://ignored:8080")
	if got := defaultProxy(); got != "socks5://10.0.0.1:9050" {
		t.Fatalf("http ALL_PROXY should be skipped, got %q", got)
	}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			_, _ = io.WriteString(w, "SLOW-OK")
		case "/fail":
			http.NotFound(w, r)
		case "/echo":
			_, _ = io.WriteString(w, r.Method+" "+r.Header.Get("X-Test")+" "+r.URL.RawQuery)
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			_, _ = io.WriteString(w, r.URL.Path[1:])
		}
	}))
	defer origin.Close()

	proxy := testutil.StartSOCKS5Server(t, ctx, socks5.Auth{})
	proxyFlag := "--proxy=socks5://" + proxy.Addr()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "single",
			args: []string{proxyFlag, origin.URL + "/one"},
			want: "one",
		},
		{
			name: "argument order",
			args: []string{proxyFlag, "--parallel=3", origin.URL + "/slow", origin.URL + "/two", origin.URL + "/three"},
			want: "SLOW-OKtwothree",
		},
		{
			name:    "failure does not cancel others",
			args:    []string{proxyFlag, "--parallel=2", origin.URL + "/slow", origin.URL + "/fail"},
			want:    "SLOW-OK",
			wantErr: true,
		},
		{
			name: "empty body is success",
			args: []string{proxyFlag, origin.URL + "/empty", origin.URL + "/one"},
			want: "one",
		},
		{
			name: "method header and param",
			args: []string{proxyFlag, "-X", "put", "-H", "X-Test: yes", "--param", "a=1", origin.URL + "/echo"},
			want: "PUT yes a=1",
		},
		{
			name:    "invalid proxy",
			args:    []string{"--proxy=http://127.0.0.1:1", origin.URL + "/one"},
			wantErr: true,
		},
		{
			name:    "no URL",
			args:    []string{proxyFlag},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{proxyFlag, "--bogus", origin.URL + "/one"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			err := run(ctx, append([]string{"sockshttp"}, tt.args...), &stdout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if got := stdout.String(); got != tt.want {
				t.Fatalf("got stdout %q want %q", got, tt.want)
			}
		})
	}
}

func TestRunProxyDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout bytes.Buffer
	err := run(ctx, []string{"sockshttp", "--proxy=socks5://" + testutil.ClosedAddr(t), "http://127.0.0.1:1/"}, &stdout)
	if err == nil {
		t.Fatal("expected error")
	}
	if stdout.Len() != 0 {
		t.Fatalf("got stdout %q", stdout.String())
	}
}
