package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/die-net/sockshttp/internal/dialer"
	"github.com/die-net/sockshttp/internal/logging"
	"github.com/die-net/sockshttp/internal/transport"
)

// Client sends HTTP requests through a single SOCKS5 proxy. It is safe for
// concurrent use.
type Client struct {
	proxy dialer.Endpoint
	rt    http.RoundTripper
	jar   http.CookieJar
	rc    *resty.Client
	log   *zap.Logger
}

// New validates cfg and returns a Client bound to its proxy. No connection
// is made until the first request.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}
	cfg = cfg.withDefaults()

	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}

	proxy := cfg.endpoint()
	d := dialer.NewSOCKS5ProxyDialer(dialer.Config{
		DialTimeout:        cfg.DialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          cfg.KeepAlive,
	}, proxy.Addr(), proxy.Username, proxy.Password, proxy.RemoteDNS)

	rt := transport.New(d, transport.Config{
		NegotiationTimeout: cfg.NegotiationTimeout,
		IdleTimeout:        cfg.IdleTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	rc := resty.NewWithClient(&http.Client{
		Transport: rt,
		Jar:       jar,
		Timeout:   cfg.Timeout,
	})
	rc.SetLogger(log.Named("resty").Sugar())
	rc.SetHeader("User-Agent", cfg.UserAgent)
	rc.SetAllowGetMethodPayload(true)
	if cfg.MaxRedirects < 0 {
		rc.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	} else {
		rc.SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects))
	}

	return &Client{
		proxy: proxy,
		rt:    rt,
		jar:   jar,
		rc:    rc,
		log:   log.With(zap.String("proxy", proxy.URL())),
	}, nil
}

// ProxyURL returns the proxy this client is bound to, without the password.
func (c *Client) ProxyURL() string {
	return c.proxy.URL()
}

// Cookies returns the cookies the client would send to rawURL.
func (c *Client) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// Close releases idle pooled connections. The client stays usable.
func (c *Client) Close() {
	transport.CloseIdleConnections(c.rt)
}

// Do sends a request through the proxy and returns the response when the
// server answered with a 2xx status. Otherwise it returns nil and a
// *RequestError.
func (c *Client) Do(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	fail := func(err error) (*Response, error) {
		return nil, &RequestError{Method: method, URL: rawURL, Err: err}
	}

	if err := checkURL(rawURL); err != nil {
		return fail(err)
	}

	rq := &request{r: c.rc.R()}
	for _, o := range opts {
		o(rq)
	}
	if rq.err != nil {
		return fail(rq.err)
	}

	if rq.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rq.timeout)
		defer cancel()
	}

	resp, err := rq.r.SetContext(ctx).Execute(method, rawURL)
	if err != nil {
		return fail(err)
	}

	if !resp.IsSuccess() {
		return nil, &RequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
		}
	}

	return newResponse(resp), nil
}

// Request is Do for callers that only care whether they got a response:
// failures are logged and reported as nil.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) *Response {
	start := time.Now()
	resp, err := c.Do(ctx, method, rawURL, opts...)
	if err != nil {
		c.logFailure(err, time.Since(start))
		return nil
	}

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", resp.Elapsed),
	)
	return resp
}

func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) *Response {
	return c.Request(ctx, http.MethodGet, rawURL, opts...)
}

func (c *Client) Post(ctx context.Context, rawURL string, opts ...RequestOption) *Response {
	return c.Request(ctx, http.MethodPost, rawURL, opts...)
}

func (c *Client) logFailure(err error, elapsed time.Duration) {
	fields := []zap.Field{zap.Duration("elapsed", elapsed)}

	var re *RequestError
	if errors.As(err, &re) {
		fields = append(fields, zap.String("method", re.Method), zap.String("url", re.URL))
		if re.StatusCode != 0 {
			fields = append(fields, zap.Int("status", re.StatusCode))
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		fields = append(fields, zap.Bool("timeout", true))
	}

	c.log.Error("request failed", append(fields, zap.Error(err))...)
}

func checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}
