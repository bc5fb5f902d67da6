package socks5

import (
	"errors"
	"fmt"
	"net"
	"slices"

	txsocks5 "github.com/txthinking/socks5"
)

// Request is a client request read by the server side of the handshake.
type Request struct {
	Cmd  byte
	Atyp byte

	// Address is host:port exactly as the client sent it; host is a domain
	// name when Atyp is a domain address.
	Address string
}

// IsDomain reports whether the client asked the proxy to resolve the target.
func (r *Request) IsDomain() bool {
	return r.Atyp == txsocks5.ATYPDomain
}

// ServerNegotiate runs the server side of method negotiation. With a
// non-empty auth.Username the client must authenticate with exactly those
// credentials; otherwise no-auth is selected.
func ServerNegotiate(conn net.Conn, auth Auth) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if auth.Username == "" {
		if !slices.Contains(neg.Methods, txsocks5.MethodNone) {
			writeNoAcceptableMethods(conn)
			return errors.New("client does not support no-auth")
		}
		if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
			return fmt.Errorf("negotiation reply: %w", err)
		}
		return nil
	}

	if !slices.Contains(neg.Methods, txsocks5.MethodUsernamePassword) {
		writeNoAcceptableMethods(conn)
		return errors.New("client does not support username/password")
	}
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}

	urq, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read userpass: %w", err)
	}
	if string(urq.Uname) != auth.Username || string(urq.Passwd) != auth.Password {
		_, _ = txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusFailure).WriteTo(conn)
		return ErrAuthRejected
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(txsocks5.UserPassStatusSuccess).WriteTo(conn); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}
	return nil
}

func ServerNegotiateNoAuth(conn net.Conn) error {
	return ServerNegotiate(conn, Auth{})
}

func ServerReadRequest(conn net.Conn) (*Request, error) {
	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return &Request{Cmd: req.Cmd, Atyp: req.Atyp, Address: req.Address()}, nil
}
