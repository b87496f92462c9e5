// Package probes holds the sibling service probes of the toolkit: a
// registry of thin single round trip checks for the simple TCP
// protocols that commonly share infrastructure with IKE gateways.
// Every probe performs one bounded exchange and returns raw banner
// bytes, classification stays with the caller.
package probes

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"sort"
	"time"

	"github.com/miekg/dns"
	"github.com/projectdiscovery/ikex/pkg/transport"
)

// maxBannerLen caps banner accumulation for streaming services.
const maxBannerLen = 4096

var Probes map[string]Probe

// Probe attempts to trigger a service response for a specific service.
type Probe interface {
	Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error)
}

func MustAddProbe(name string, probe Probe) {
	if _, ok := Probes[name]; ok {
		panic("probe " + name + " already defined")
	}
	Probes[name] = probe
}

// defaultPorts are the conventional ports of each probe's service.
var defaultPorts = map[string]int{
	"echo":    7,
	"discard": 9,
	"daytime": 13,
	"chargen": 19,
	"time":    37,
	"dns":     53,
	"finger":  79,
	"http":    80,
}

// DefaultPort returns the conventional port for a probe name.
func DefaultPort(name string) (int, bool) {
	port, ok := defaultPorts[name]
	return port, ok
}

// Names returns the registered probe names, sorted.
func Names() []string {
	names := make([]string, 0, len(Probes))
	for name := range Probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Probes = make(map[string]Probe)
	// Protocols (TCP)
	// ECHO
	MustAddProbe("echo", echoProbe{})
	// DISCARD
	MustAddProbe("discard", discardProbe{})
	// DAYTIME, CHARGEN and other self-advertising services
	MustAddProbe("null", nullProbe{})
	MustAddProbe("daytime", nullProbe{})
	MustAddProbe("chargen", nullProbe{})
	// TIME (RFC 868)
	MustAddProbe("time", timeProbe{})
	// FINGER
	MustAddProbe("finger", fingerProbe{})
	// DNS (TCP)
	MustAddProbe("dns", dnsProbe{})
	// HTTP
	MustAddProbe("http", httpProbe{})
}

// readBanner accumulates response chunks until the service stops
// sending, the deadline elapses or the cap is hit. Streaming services
// like chargen never stop on their own.
func readBanner(conn *transport.Conn, timeout time.Duration) []byte {
	deadline := time.Now().Add(timeout)

	var banner []byte
	for len(banner) < maxBannerLen {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		chunk, err := conn.Read(remaining)
		banner = append(banner, chunk...)
		if err != nil {
			break
		}
	}
	return banner
}

// nullProbe reads whatever a self-advertising service volunteers.
type nullProbe struct{}

func (h nullProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	conn, err := dialer.Dial(host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	banner := readBanner(conn, timeout)
	if len(banner) == 0 {
		return nil, errors.New("no banner received")
	}
	return banner, nil
}

type echoProbe struct{}

func (d echoProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	conn, err := dialer.Dial(host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	randomData := make([]byte, 16)
	if _, err := rand.Read(randomData); err != nil {
		return nil, err
	}
	if err := conn.Write(randomData, timeout); err != nil {
		return nil, err
	}

	return conn.Read(timeout)
}

// discardProbe verifies the service swallows data silently. An answer
// means whatever listens there is not a discard service.
type discardProbe struct{}

func (d discardProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	conn, err := dialer.Dial(host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	randomData := make([]byte, 16)
	if _, err := rand.Read(randomData); err != nil {
		return nil, err
	}
	if err := conn.Write(randomData, timeout); err != nil {
		return nil, err
	}

	data, err := conn.Read(timeout)
	// silence until the deadline or a quiet close is the expected
	// behavior
	if err != nil && !os.IsTimeout(err) && err != io.EOF {
		return nil, err
	}
	if len(data) > 0 {
		return data, errors.New("discard service answered")
	}
	return nil, nil
}

type timeProbe struct{}

func (t timeProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	conn, err := dialer.Dial(host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	data, err := conn.Read(timeout)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("invalid time response: got %d bytes, need 4", len(data))
	}
	return data[:4], nil
}

// rfc868Offset is the second count between the time protocol's 1900
// epoch and the unix epoch.
const rfc868Offset = 2208988800

// DecodeTime converts an RFC 868 response to a unix time.
func DecodeTime(data []byte) (time.Time, bool) {
	if len(data) < 4 {
		return time.Time{}, false
	}
	seconds := binary.BigEndian.Uint32(data[0:4])
	return time.Unix(int64(seconds)-rfc868Offset, 0), true
}

// fingerProbe sends the empty query, which asks for the user list.
type fingerProbe struct{}

func (f fingerProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	conn, err := dialer.Dial(host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.Write([]byte("\r\n"), timeout); err != nil {
		return nil, err
	}

	banner := readBanner(conn, timeout)
	if len(banner) == 0 {
		return nil, errors.New("no response to finger query")
	}
	return banner, nil
}

type dnsProbe struct{}

func (d dnsProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	req := new(dns.Msg)

	// Query for the root domain NS records
	req.SetQuestion(".", dns.TypeNS)

	conn, err := dialer.Dial(host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dnsClient := &dns.Client{Net: "tcp", ReadTimeout: timeout, WriteTimeout: timeout}
	resp, _, err := dnsClient.ExchangeWithConn(req, &dns.Conn{Conn: conn.NetConn()})
	if err != nil {
		return nil, err
	}

	return resp.Pack()
}

type httpProbe struct{}

func (h httpProbe) Do(dialer *transport.Dialer, host string, port int, timeout time.Duration) ([]byte, error) {
	httpClient := http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			// route through the shared dialer so the probe honors
			// socks5 proxy settings
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				conn, err := dialer.Dial(host, port)
				if err != nil {
					return nil, err
				}
				return conn.NetConn(), nil
			},
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}
	resp, err := httpClient.Get(fmt.Sprintf("http://%s:%d", host, port))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return httputil.DumpResponse(resp, true)
}
