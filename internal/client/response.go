package client

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is a successful response with its body fully read.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Header     http.Header
	Body       []byte

	// URL is the final URL after redirects.
	URL *url.URL

	Elapsed time.Duration
}

func newResponse(r *resty.Response) *Response {
	resp := &Response{
		StatusCode: r.StatusCode(),
		Status:     r.Status(),
		Header:     r.Header(),
		Body:       r.Body(),
		Elapsed:    r.Time(),
	}
	if raw := r.RawResponse; raw != nil {
		resp.Proto = raw.Proto
		if raw.Request != nil {
			resp.URL = raw.Request.URL
		}
	}
	return resp
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
