// Package client issues HTTP(S) requests through a SOCKS5 proxy.
//
// A Client is bound to one proxy for its whole life. It owns its transport,
// connection pool and cookie jar, so clients bound to different proxies can
// be used side by side and nothing process-global is modified.
//
// Every failure, whether the proxy is unreachable, the target refuses, the
// request times out or the server answers with a non-2xx status, is a single
// category: Do returns a *RequestError matching ErrRequestFailed, and Request
// logs it and returns nil.
//
// Example usage:
//
//	c, err := client.New(client.Config{ProxyHost: "localhost", ProxyPort: 49000})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if resp := c.Get(ctx, "https://api.example.com/data"); resp != nil {
//	    fmt.Println(resp.Text())
//	}
package client
