// Package socks5 provides the SOCKS5 handshake used by sockshttp.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5 so
// the outbound dialer and the in-process test proxy share one implementation
// of method negotiation, username/password authentication and CONNECT.
//
// Only the CONNECT command is supported; BIND and UDP ASSOCIATE are not.
package socks5
