// Package ike drives single request/response probes against IKE
// gateways over TCP: one ISAKMP phase 1 exchange or one IKEv2
// IKE_SA_INIT per call, each on its own connection with fresh random
// cookies, SPIs and nonces, classified into a structured result on
// every exit path.
package ike

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ikex/pkg/ikev2"
	"github.com/projectdiscovery/ikex/pkg/isakmp"
	"github.com/projectdiscovery/ikex/pkg/transport"
)

// maxResponseLen caps response accumulation so a forged length field
// cannot make the read loop buffer without bound.
const maxResponseLen = 65536

// Options configures a Prober.
type Options struct {
	// Timeout bounds dialing, the write and the whole read loop,
	// each separately.
	Timeout time.Duration
	// Proxy optionally routes probe connections through a socks5
	// proxy, as host:port.
	Proxy string
	// ProxyAuth holds socks5 credentials as username:password.
	ProxyAuth string
}

// Prober runs IKE probes. It holds no per-probe state, a single
// instance serves concurrent callers.
type Prober struct {
	dialer *transport.Dialer
}

// NewProber creates a Prober from options.
func NewProber(options Options) (*Prober, error) {
	dialer, err := transport.NewDialer(transport.Options{
		Timeout:   options.Timeout,
		Proxy:     options.Proxy,
		ProxyAuth: options.ProxyAuth,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create dialer: %s", err)
	}
	return &Prober{dialer: dialer}, nil
}

// Dialer returns the underlying transport dialer so that sibling
// probes can share the proxy and timeout configuration.
func (p *Prober) Dialer() *transport.Dialer {
	return p.dialer
}

// IKEv1 sends one ISAKMP phase 1 SA proposal using the given exchange
// type and classifies whatever comes back. Every outcome, including
// timeouts and garbage, is returned as a structured result.
func (p *Prober) IKEv1(host string, port int, exchangeType byte) *V1Result {
	result := &V1Result{
		Host:         host,
		Port:         port,
		ExchangeType: isakmp.ExchangeTypeLabel(exchangeType),
	}

	conn, err := p.dialer.Dial(host, port)
	if err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not connect: %s", err)}
		return result
	}
	defer conn.Close()

	var cookie [8]byte
	if _, err := rand.Read(cookie[:]); err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not generate initiator cookie: %s", err)}
		return result
	}
	result.InitiatorCookie = hex.EncodeToString(cookie[:])

	sa := isakmp.BuildSAProposal()
	header := isakmp.Header{
		InitiatorCookie: cookie,
		NextPayload:     isakmp.PayloadSecurityAssociation,
		Version:         isakmp.Version(1, 0),
		ExchangeType:    exchangeType,
		Length:          uint32(isakmp.HeaderLen + len(sa)),
	}
	request := append(header.Marshal(), sa...)

	start := time.Now()
	if err := conn.Write(request, p.dialer.Timeout()); err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not send request: %s", err)}
		return result
	}

	response := p.readResponse(conn)
	elapsed := time.Since(start)

	if len(response) == 0 {
		result.Error = &ProbeError{Kind: FailureNoResponse, Message: "no response before deadline"}
		return result
	}
	result.RTT = elapsed

	msg, err := isakmp.ParseMessage(response)
	if err != nil {
		result.Error = &ProbeError{
			Kind:     FailureMalformed,
			Message:  fmt.Sprintf("could not parse response: %s", err),
			Received: len(response),
		}
		return result
	}

	gologger.Debug().Msgf("isakmp %s:%d answered with %d bytes, %d payloads", host, port, len(response), len(msg.Payloads))

	result.Version = msg.Header.VersionString()
	result.ExchangeType = isakmp.ExchangeTypeLabel(msg.Header.ExchangeType)
	result.ResponderCookie = hex.EncodeToString(msg.Header.ResponderCookie[:])
	result.VendorIDs = isakmp.VendorIDs(msg.Payloads)

	saSeen := false
	for _, payload := range msg.Payloads {
		switch payload.Type {
		case isakmp.PayloadSecurityAssociation:
			saSeen = true
			proposals := isakmp.ParseSA(payload.Body)
			result.ProposalCount += len(proposals)
			for _, proposal := range proposals {
				result.TransformCount += len(proposal.Transforms)
			}
		case isakmp.PayloadNotification:
			code, ok := isakmp.NotifyCode(payload.Body)
			if !ok {
				continue
			}
			result.Notify = isakmp.NotifyLabel(code)
			if isakmp.IsErrorNotify(code) {
				result.Error = &ProbeError{Kind: FailureReject, Message: fmt.Sprintf("peer rejected negotiation: %s", result.Notify)}
			}
		}
	}

	// an SA payload that yields no decodable proposal is how some
	// gateways phrase a rejection
	if result.Error == nil && saSeen && result.ProposalCount == 0 {
		result.Error = &ProbeError{Kind: FailureReject, Message: "peer answered with an undecodable security association"}
	}

	result.Success = result.Error == nil
	return result
}

// IKEv2 sends one IKE_SA_INIT request and classifies the response:
// selected algorithms from the echoed proposal, notify payloads split
// into rejections and status notes, and a version warning when the
// peer did not answer as IKEv2.
func (p *Prober) IKEv2(host string, port int) *V2Result {
	result := &V2Result{Host: host, Port: port}

	conn, err := p.dialer.Dial(host, port)
	if err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not connect: %s", err)}
		return result
	}
	defer conn.Close()

	var spi [8]byte
	if _, err := rand.Read(spi[:]); err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not generate initiator SPI: %s", err)}
		return result
	}
	nonce := make([]byte, ikev2.NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not generate nonce: %s", err)}
		return result
	}

	request := ikev2.BuildIKESAInit(spi, nonce)

	start := time.Now()
	if err := conn.Write(request, p.dialer.Timeout()); err != nil {
		result.Error = &ProbeError{Kind: FailureConnection, Message: fmt.Sprintf("could not send request: %s", err)}
		return result
	}

	response := p.readResponse(conn)
	elapsed := time.Since(start)

	if len(response) == 0 {
		result.Error = &ProbeError{Kind: FailureNoResponse, Message: "no response before deadline"}
		return result
	}
	result.RTT = elapsed

	msg, err := ikev2.ParseResponse(response)
	if err != nil {
		result.Error = &ProbeError{
			Kind:     FailureMalformed,
			Message:  fmt.Sprintf("could not parse response: %s", err),
			Received: len(response),
		}
		return result
	}

	gologger.Debug().Msgf("ikev2 %s:%d answered with %d bytes, %d payloads", host, port, len(response), len(msg.Payloads))

	result.Version = msg.Header.VersionString()
	result.ResponderSPI = hex.EncodeToString(msg.Header.ResponderSPI[:])
	if msg.Header.MajorVersion() != 2 {
		result.VersionWarning = fmt.Sprintf("peer answered with version %s instead of 2.x", result.Version)
	}

	for _, payload := range msg.Payloads {
		switch payload.Type {
		case ikev2.PayloadSecurityAssociation:
			result.NegotiatedSA = *ikev2.ParseSAPayload(payload.Body)
		case ikev2.PayloadNotify:
			code, ok := ikev2.NotifyCode(payload.Body)
			if !ok {
				continue
			}
			label := ikev2.NotifyLabel(code)
			if ikev2.IsErrorNotify(code) {
				result.ErrorNotify = label
				result.Error = &ProbeError{Kind: FailureReject, Message: fmt.Sprintf("peer rejected negotiation: %s", label)}
			} else {
				result.Notifications = append(result.Notifications, label)
			}
		}
	}

	result.Success = result.Error == nil
	return result
}

// readResponse accumulates response bytes until the length declared in
// the message header is satisfied, the peer stops sending, or the
// deadline elapses. Both wire formats carry the total length at the
// same header offset. Partial data is returned as is, classification
// happens in the caller.
func (p *Prober) readResponse(conn *transport.Conn) []byte {
	deadline := time.Now().Add(p.dialer.Timeout())

	var response []byte
	for len(response) < maxResponseLen {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		chunk, err := conn.Read(remaining)
		response = append(response, chunk...)
		if err != nil {
			break
		}
		if len(response) >= isakmp.HeaderLen {
			declared := binary.BigEndian.Uint32(response[24:28])
			if uint64(len(response)) >= uint64(declared) {
				break
			}
		}
	}
	return response
}
