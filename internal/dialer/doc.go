// Package dialer provides the outbound dialers used by sockshttp.
//
// Dialers implement a small interface (DialContext) and are plugged into the
// HTTP transport so every connection a client makes either goes straight to
// the network or is tunneled through a SOCKS5 proxy.
package dialer
