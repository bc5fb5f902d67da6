package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrAuthRejected is returned when the proxy refuses the supplied
// username/password.
var ErrAuthRejected = errors.New("socks5: authentication rejected")

// ReplyError reports a non-success reply to a CONNECT request.
type ReplyError struct {
	Code byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5: connect failed: %s", replyText(e.Code))
}

// ClientDial negotiates with the proxy on conn and asks it to CONNECT to
// address, which is either ip:port or hostname:port. A hostname is passed to
// the proxy as a domain address and resolved on the proxy side.
func ClientDial(conn net.Conn, auth Auth, address string) error {
	if err := ClientNegotiate(conn, auth); err != nil {
		return err
	}
	return ClientConnect(conn, address)
}

// ClientNegotiate offers no-auth, and username/password when auth carries a
// username, then completes whichever method the proxy selects.
func ClientNegotiate(conn net.Conn, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Username != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if auth.Username == "" {
			return errors.New("socks5: proxy requires username/password")
		}

		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return ErrAuthRejected
		}
		return nil
	case methodNoAcceptable:
		return errors.New("socks5: proxy accepted none of the offered methods")
	default:
		return fmt.Errorf("socks5: unsupported negotiation method: %d", neg.Method)
	}
}

// ClientConnect sends a CONNECT request for address and checks the reply.
func ClientConnect(conn net.Conn, address string) error {
	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", address, err)
	}
	if atyp == txsocks5.ATYPDomain {
		// NewRequest adds the length prefix itself.
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return &ReplyError{Code: rep.Rep}
	}
	return nil
}
