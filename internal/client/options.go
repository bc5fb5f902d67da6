package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

type request struct {
	r       *resty.Request
	timeout time.Duration
	err     error
}

// RequestOption customizes a single request.
type RequestOption func(*request)

// WithHeader sets a request header, replacing any client default.
func WithHeader(key, value string) RequestOption {
	return func(rq *request) {
		rq.r.SetHeader(key, value)
	}
}

func WithHeaders(h map[string]string) RequestOption {
	return func(rq *request) {
		rq.r.SetHeaders(h)
	}
}

// WithParam adds a query parameter. Repeated keys are all sent.
func WithParam(key, value string) RequestOption {
	return func(rq *request) {
		rq.r.QueryParam.Add(key, value)
	}
}

func WithParams(v url.Values) RequestOption {
	return func(rq *request) {
		for k, vs := range v {
			for _, s := range vs {
				rq.r.QueryParam.Add(k, s)
			}
		}
	}
}

// WithBody sends body as-is. It accepts []byte, string or io.Reader.
func WithBody(body any) RequestOption {
	return func(rq *request) {
		switch body.(type) {
		case []byte, string, io.Reader:
			rq.r.SetBody(body)
		default:
			rq.err = fmt.Errorf("unsupported body type %T", body)
		}
	}
}

// WithFormData sends an application/x-www-form-urlencoded body.
func WithFormData(form map[string]string) RequestOption {
	return func(rq *request) {
		rq.r.SetFormData(form)
	}
}

// WithJSON marshals v and sends it with Content-Type application/json.
func WithJSON(v any) RequestOption {
	return func(rq *request) {
		b, err := json.Marshal(v)
		if err != nil {
			rq.err = fmt.Errorf("marshal json body: %w", err)
			return
		}
		rq.r.SetHeader("Content-Type", "application/json")
		rq.r.SetBody(b)
	}
}

// WithBasicAuth sets HTTP basic credentials for the target server (not the
// proxy).
func WithBasicAuth(username, password string) RequestOption {
	return func(rq *request) {
		rq.r.SetBasicAuth(username, password)
	}
}

// WithCookie sends c in addition to any cookies in the client's jar.
func WithCookie(c *http.Cookie) RequestOption {
	return func(rq *request) {
		rq.r.SetCookie(c)
	}
}

// WithTimeout bounds this request, on top of any client-wide timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(rq *request) {
		rq.timeout = d
	}
}
