package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding lists the content codings the transport can decode.
const AcceptEncoding = "gzip, deflate, br, zstd"

type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Method != http.MethodHead {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	codings := parseCodings(resp.Header.Get("Content-Encoding"))
	if len(codings) == 0 || resp.Body == nil || resp.Body == http.NoBody {
		return resp, nil
	}
	for _, c := range codings {
		if _, ok := decoders[c]; !ok {
			// Leave responses we can't fully decode untouched.
			return resp, nil
		}
	}

	body := resp.Body
	var r io.Reader = body
	// Codings are listed in the order they were applied.
	for i := len(codings) - 1; i >= 0; i-- {
		r = &lazyReader{src: r, open: decoders[codings[i]], coding: codings[i]}
	}

	resp.Body = &decodedBody{Reader: r, closer: body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

func (t *decodingTransport) CloseIdleConnections() {
	CloseIdleConnections(t.base)
}

func parseCodings(header string) []string {
	var codings []string
	for _, c := range strings.Split(header, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || c == "identity" {
			continue
		}
		codings = append(codings, c)
	}
	return codings
}

type openFunc func(io.Reader) (io.ReadCloser, error)

var decoders = map[string]openFunc{
	"gzip": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	"x-gzip": func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	"deflate": openDeflate,
	"br": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(r)), nil
	},
	"zstd": func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
}

// openDeflate accepts both zlib-wrapped (RFC 1950) and raw (RFC 1951)
// deflate, since servers disagree about what "deflate" means.
func openDeflate(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	hdr, err := br.Peek(2)
	if err == nil && isZlibHeader(hdr[0], hdr[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// lazyReader defers creating the decoder until the first Read, so an empty
// body does not fail at RoundTrip time.
type lazyReader struct {
	src    io.Reader
	open   openFunc
	coding string
	rc     io.ReadCloser
	err    error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.rc == nil && l.err == nil {
		l.rc, l.err = l.open(l.src)
		if errors.Is(l.err, io.EOF) {
			// Empty body.
			return 0, io.EOF
		}
		if l.err != nil {
			l.err = fmt.Errorf("decode %s: %w", l.coding, l.err)
		}
	}
	if l.err != nil {
		return 0, l.err
	}
	return l.rc.Read(p)
}

func (l *lazyReader) Close() error {
	if l.rc != nil {
		return l.rc.Close()
	}
	return nil
}

type decodedBody struct {
	io.Reader
	closer io.Closer
}

func (b *decodedBody) Close() error {
	for r := b.Reader; r != nil; {
		l, ok := r.(*lazyReader)
		if !ok {
			break
		}
		_ = l.Close()
		r = l.src
	}
	return b.closer.Close()
}
