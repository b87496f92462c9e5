// Package transport is the TCP layer the probes run on:
// timeout-bounded dialing with optional SOCKS5 proxying, full writes
// and deadline-driven reads over a connection that closes exactly
// once.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultReadBufferSize is how much a single Read call can return.
const DefaultReadBufferSize = 4096

// DefaultTimeout bounds dial, read and write when the caller sets
// none.
const DefaultTimeout = 10 * time.Second

// Options configures a Dialer.
type Options struct {
	// Timeout applies separately to dialing and to each read and
	// write.
	Timeout time.Duration
	// Proxy is an optional socks5 proxy address as host:port.
	Proxy string
	// ProxyAuth holds socks5 credentials as username:password.
	ProxyAuth string
}

// Dialer opens probe connections, directly or through a SOCKS5 proxy.
type Dialer struct {
	timeout     time.Duration
	proxyDialer proxy.Dialer
}

// NewDialer creates a Dialer from options, validating the proxy
// address when one is given.
func NewDialer(options Options) (*Dialer, error) {
	d := &Dialer{timeout: options.Timeout}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}

	var auth *proxy.Auth = nil

	if options.ProxyAuth != "" && strings.Contains(options.ProxyAuth, ":") {
		credentials := strings.SplitN(options.ProxyAuth, ":", 2)
		var user, password string
		user = credentials[0]
		if len(credentials) == 2 {
			password = credentials[1]
		}
		auth = &proxy.Auth{User: user, Password: password}
	}

	if options.Proxy != "" {
		if _, _, err := net.SplitHostPort(options.Proxy); err != nil {
			return nil, fmt.Errorf("invalid socks5 proxy %s: %s", options.Proxy, err)
		}
		proxyDialer, err := proxy.SOCKS5("tcp", options.Proxy, auth, &net.Dialer{Timeout: d.timeout})
		if err != nil {
			return nil, err
		}
		d.proxyDialer = proxyDialer
	}

	return d, nil
}

// Timeout returns the configured per-operation timeout.
func (d *Dialer) Timeout() time.Duration {
	return d.timeout
}

// Dial opens a TCP connection to host and port.
func (d *Dialer) Dial(host string, port int) (*Conn, error) {
	hostport := net.JoinHostPort(host, fmt.Sprint(port))
	var (
		err  error
		conn net.Conn
	)
	if d.proxyDialer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		proxyDialer, ok := d.proxyDialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("invalid proxy dialer")
		}
		conn, err = proxyDialer.DialContext(ctx, "tcp", hostport)
	} else {
		conn, err = net.DialTimeout("tcp", hostport, d.timeout)
	}
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

// Conn is a probe connection. Reads and writes take explicit deadlines
// and Close is safe to call more than once.
type Conn struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

// Write sends all of data, retrying partial writes, within timeout.
func (c *Conn) Write(data []byte, timeout time.Duration) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	for len(data) > 0 {
		n, err := c.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Read returns the next chunk of response data, at most
// DefaultReadBufferSize bytes. A chunk that arrives together with an
// error is returned with a nil error, the error surfaces on the next
// call.
func (c *Conn) Read(timeout time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, DefaultReadBufferSize)
	n, err := c.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// RemoteAddr returns the remote endpoint of the connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// NetConn exposes the underlying connection for callers that hand it
// to other client libraries.
func (c *Conn) NetConn() net.Conn {
	return c.conn
}

// Close tears the connection down. Repeat calls return the first
// result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
