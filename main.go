package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/sockshttp/internal/client"
	"github.com/die-net/sockshttp/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run fetches every URL in args and writes the bodies of the successful ones
// to stdout in argument order. It returns an error if any request failed.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	var (
		proxyURL = fs.String("proxy", defaultProxy(), "SOCKS5 proxy URL: socks5://[user:pass@]host:port (resolve locally) | socks5h://[user:pass@]host:port (resolve on proxy)")

		method  = fs.StringP("method", "X", "GET", "HTTP method")
		headers = fs.StringArrayP("header", "H", nil, "Request header 'Name: value' (repeatable)")
		params  = fs.StringArray("param", nil, "Query parameter 'key=value' (repeatable)")
		data    = fs.StringP("data", "d", "", "Request body; '@file' reads it from file")

		timeout            = fs.Duration("timeout", 30*time.Second, "Timeout for each request, including reading the body. 0 disables.")
		dialTimeout        = fs.Duration("dial-timeout", 10*time.Second, "Timeout for DNS lookup and TCP connect to the proxy")
		negotiationTimeout = fs.Duration("negotiation-timeout", 10*time.Second, "Timeout for SOCKS5 and TLS negotiation")
		tcpKeepAlive       = fs.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		maxRedirects       = fs.Int("max-redirects", client.DefaultMaxRedirects, "Maximum redirects to follow; negative disables following")
		insecure           = fs.Bool("insecure", false, "Skip TLS certificate verification of target servers")
		userAgent          = fs.String("user-agent", client.DefaultUserAgent, "User-Agent header")
		parallel           = fs.Int("parallel", 4, "Maximum concurrent requests when several URLs are given")
		verbose            = fs.Bool("verbose", false, "Enable debug logging")
	)

	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] URL...\n", args[0])
		fs.PrintDefaults()
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	urls := fs.Args()
	if len(urls) == 0 {
		fs.Usage()
		return errors.New("no URL given")
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	opts, err := requestOptions(*headers, *params, *data)
	if err != nil {
		return err
	}

	logger, err := logging.New(*verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := client.Config{
		Timeout:            *timeout,
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
		UserAgent:          *userAgent,
		MaxRedirects:       *maxRedirects,
		InsecureSkipVerify: *insecure,
		Logger:             logger,
	}
	if err := cfg.SetProxyURL(*proxyURL); err != nil {
		return fmt.Errorf("invalid --proxy: %w", err)
	}

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Debug("starting", zap.String("proxy", c.ProxyURL()), zap.Int("urls", len(urls)))

	// A failed URL must not cancel the others; only ctx does.
	bodies := make([][]byte, len(urls))
	failed := make([]bool, len(urls))
	var g errgroup.Group
	g.SetLimit(max(*parallel, 1))
	for i, u := range urls {
		g.Go(func() error {
			resp := c.Request(ctx, strings.ToUpper(*method), u, opts...)
			if resp == nil {
				failed[i] = true
				return nil
			}
			bodies[i] = resp.Body
			return nil
		})
	}
	_ = g.Wait()

	var n int
	for i, b := range bodies {
		if failed[i] {
			n++
			continue
		}
		if _, err := stdout.Write(b); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if n > 0 {
		return fmt.Errorf("%d of %d requests failed", n, len(urls))
	}
	return nil
}

func requestOptions(headers, params []string, data string) ([]client.RequestOption, error) {
	var opts []client.RequestOption

	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --header %q: expected 'Name: value'", h)
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	if len(params) > 0 {
		values := url.Values{}
		for _, p := range params {
			k, v, ok := strings.Cut(p, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid --param %q: expected 'key=value'", p)
			}
			values.Add(k, v)
		}
		opts = append(opts, client.WithParams(values))
	}

	if data != "" {
		body := []byte(data)
		if name, ok := strings.CutPrefix(data, "@"); ok {
			b, err := os.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("read --data: %w", err)
			}
			body = b
		}
		opts = append(opts, client.WithBody(body))
	}

	return opts, nil
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}

	var n [3]int
	for i, name := range []string{"keepidle", "keepintvl", "keepcnt"} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return net.KeepAliveConfig{}, fmt.Errorf("%s: %w", name, err)
		}
		if v <= 0 {
			return net.KeepAliveConfig{}, fmt.Errorf("%s: must be > 0", name)
		}
		n[i] = v
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(n[0]) * time.Second,
		Interval: time.Duration(n[1]) * time.Second,
		Count:    n[2],
	}, nil
}

func defaultProxy() string {
	for _, env := range []string{"ALL_PROXY", "all_proxy"} {
		if p := os.Getenv(env); strings.HasPrefix(strings.ToLower(p), "socks5") {
			return p
		}
	}
	return "socks5h://127.0.0.1:1080"
}
