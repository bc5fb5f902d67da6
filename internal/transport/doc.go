// Package transport builds the http.RoundTripper used by sockshttp clients.
//
// Every connection is made with the supplied dialer, so no request can
// bypass the proxy: there is no Proxy func and proxy environment variables
// are ignored. Responses are decoded according to Content-Encoding before
// they reach the caller.
package transport
